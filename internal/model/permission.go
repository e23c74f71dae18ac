package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	PermissionCandidatesRead  Permission = "candidates:read"
	PermissionCandidatesWrite Permission = "candidates:write"
	PermissionJobsRead        Permission = "jobs:read"
	PermissionJobsWrite       Permission = "jobs:write"
	PermissionInterviewsRead  Permission = "interviews:read"
	PermissionInterviewsWrite Permission = "interviews:write"

	PermissionExamsRead     Permission = "exams:read"
	PermissionExamsWrite    Permission = "exams:write"
	PermissionExamsAssign   Permission = "exams:assign"
	PermissionResultsRead   Permission = "results:read"
	PermissionIntegrityRead Permission = "integrity:read"

	PermissionAdminsRead   Permission = "admins:read"
	PermissionAdminsWrite  Permission = "admins:write"
	PermissionRolesRead    Permission = "roles:read"
	PermissionRolesWrite   Permission = "roles:write"
	PermissionNotifyRead   Permission = "notifications:read"
	PermissionSettingsRead Permission = "settings:read"
)

// MenuModule is the top level of the navigation tree (e.g. Recruitment).
type MenuModule struct {
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	MenuTypes []MenuType `json:"menu_types"`
}

// MenuType groups menus inside a module (e.g. Pipeline, Reports).
type MenuType struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Menus []Menu `json:"menus"`
}

// Menu is a navigable page with the actions it exposes.
type Menu struct {
	Code    string       `json:"code"`
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Actions []MenuAction `json:"actions"`
}

// MenuAction is a grantable permission on a menu.
type MenuAction struct {
	Permission Permission `json:"permission"`
	Name       string     `json:"name"`
}

// MenuCatalog is the full module -> menu type -> menu -> action tree.
var MenuCatalog = []MenuModule{
	{
		Code: "recruitment", Name: "Recruitment",
		MenuTypes: []MenuType{
			{
				Code: "pipeline", Name: "Pipeline",
				Menus: []Menu{
					{Code: "candidates", Name: "Candidates", Path: "/recruitment/candidates", Actions: []MenuAction{
						{Permission: PermissionCandidatesRead, Name: "View"},
						{Permission: PermissionCandidatesWrite, Name: "Manage"},
					}},
					{Code: "jobs", Name: "Job Postings", Path: "/recruitment/jobs", Actions: []MenuAction{
						{Permission: PermissionJobsRead, Name: "View"},
						{Permission: PermissionJobsWrite, Name: "Manage"},
					}},
					{Code: "interviews", Name: "Interviews", Path: "/recruitment/interviews", Actions: []MenuAction{
						{Permission: PermissionInterviewsRead, Name: "View"},
						{Permission: PermissionInterviewsWrite, Name: "Schedule & Score"},
					}},
				},
			},
		},
	},
	{
		Code: "examination", Name: "Examination",
		MenuTypes: []MenuType{
			{
				Code: "authoring", Name: "Authoring",
				Menus: []Menu{
					{Code: "exams", Name: "Exams", Path: "/examination/exams", Actions: []MenuAction{
						{Permission: PermissionExamsRead, Name: "View"},
						{Permission: PermissionExamsWrite, Name: "Author"},
						{Permission: PermissionExamsAssign, Name: "Assign"},
					}},
				},
			},
			{
				Code: "reports", Name: "Reports",
				Menus: []Menu{
					{Code: "results", Name: "Results", Path: "/examination/results", Actions: []MenuAction{
						{Permission: PermissionResultsRead, Name: "View"},
					}},
					{Code: "integrity", Name: "Integrity Log", Path: "/examination/integrity", Actions: []MenuAction{
						{Permission: PermissionIntegrityRead, Name: "View"},
					}},
				},
			},
		},
	},
	{
		Code: "administration", Name: "Administration",
		MenuTypes: []MenuType{
			{
				Code: "access", Name: "Access Control",
				Menus: []Menu{
					{Code: "users", Name: "Users", Path: "/admin/users", Actions: []MenuAction{
						{Permission: PermissionAdminsRead, Name: "View"},
						{Permission: PermissionAdminsWrite, Name: "Manage"},
					}},
					{Code: "roles", Name: "Roles", Path: "/admin/roles", Actions: []MenuAction{
						{Permission: PermissionRolesRead, Name: "View"},
						{Permission: PermissionRolesWrite, Name: "Manage"},
					}},
				},
			},
			{
				Code: "system", Name: "System",
				Menus: []Menu{
					{Code: "notifications", Name: "Notifications", Path: "/admin/notifications", Actions: []MenuAction{
						{Permission: PermissionNotifyRead, Name: "View"},
					}},
					{Code: "settings", Name: "Settings", Path: "/admin/settings", Actions: []MenuAction{
						{Permission: PermissionSettingsRead, Name: "View"},
					}},
				},
			},
		},
	},
}

// AllPermissions walks the catalog and returns every grantable code.
func AllPermissions() []Permission {
	var out []Permission
	for _, m := range MenuCatalog {
		for _, t := range m.MenuTypes {
			for _, menu := range t.Menus {
				for _, a := range menu.Actions {
					out = append(out, a.Permission)
				}
			}
		}
	}
	return out
}
