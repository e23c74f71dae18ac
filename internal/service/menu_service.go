package service

import "github.com/talentgate/exam-backend/internal/model"

// MenuService renders the navigation tree an admin is allowed to see.
type MenuService struct {
	catalog []model.MenuModule
}

// NewMenuService creates a MenuService over catalog, or the built-in
// catalog when nil.
func NewMenuService(catalog []model.MenuModule) *MenuService {
	if catalog == nil {
		catalog = model.MenuCatalog
	}
	return &MenuService{catalog: catalog}
}

// TreeFor keeps only the actions in grants, then drops menus, menu types
// and modules left empty. The catalog itself is never modified.
func (s *MenuService) TreeFor(grants []string) []model.MenuModule {
	granted := make(map[model.Permission]struct{}, len(grants))
	for _, g := range grants {
		granted[model.Permission(g)] = struct{}{}
	}

	modules := make([]model.MenuModule, 0, len(s.catalog))
	for _, m := range s.catalog {
		var types []model.MenuType
		for _, t := range m.MenuTypes {
			var menus []model.Menu
			for _, menu := range t.Menus {
				var actions []model.MenuAction
				for _, a := range menu.Actions {
					if _, ok := granted[a.Permission]; ok {
						actions = append(actions, a)
					}
				}
				if len(actions) == 0 {
					continue
				}
				menu.Actions = actions
				menus = append(menus, menu)
			}
			if len(menus) == 0 {
				continue
			}
			t.Menus = menus
			types = append(types, t)
		}
		if len(types) == 0 {
			continue
		}
		m.MenuTypes = types
		modules = append(modules, m)
	}
	return modules
}
