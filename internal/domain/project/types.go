// Package project contains project and branch records and the mapping from a
// change to the projects and branches it touches.
package project

// Branch is one branch of a project. A branch may override the project-level
// workflow; an empty WorkflowID inherits it.
type Branch struct {
	ID         string
	Name       string
	WorkflowID string
}

// Project is a project record with its ordered branches. WorkflowID is the
// project-level workflow; empty means no workflow at the project level.
type Project struct {
	ID         string
	Name       string
	WorkflowID string
	Branches   []Branch
}

// BranchWorkflowID resolves the effective workflow id for a branch of this
// project: the branch-specific override when present, else the project-level
// id, else empty (no workflow). Branch ids not present on the record inherit
// the project-level id.
func (p *Project) BranchWorkflowID(branchID string) string {
	for i := range p.Branches {
		if p.Branches[i].ID == branchID {
			if p.Branches[i].WorkflowID != "" {
				return p.Branches[i].WorkflowID
			}
			return p.WorkflowID
		}
	}
	return p.WorkflowID
}

// Affected maps a project id to the branch ids of that project touched by a
// change. It is produced by the affected-projects collaborator and consumed,
// never owned, by the resolution core.
type Affected map[string][]string
