package commands

import (
	"fmt"

	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/protocol"
)

// roleNames maps the free-form role strings accepted in configuration
// (config.RoleBinding.Roles) to the fixed model.Role constants the
// protocol dispatch table checks against.
var roleNames = map[string]model.Role{
	"primary":      model.RolePrimary,
	"non_customer": model.RoleNonCustomer,
	"customer":     model.RoleCustomer,
	"app_service":  model.RoleAppService,
	"neighbor":     model.RoleNeighbor,
	"colleague":    model.RoleColleague,
}

// parseRoleSet resolves a port binding's configured role names into a
// protocol.RoleSet, failing startup on any name this node doesn't
// recognize rather than silently running a port with fewer roles than
// the operator configured.
func parseRoleSet(names []string) (protocol.RoleSet, error) {
	roles := make([]model.Role, 0, len(names))
	for _, name := range names {
		role, ok := roleNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		roles = append(roles, role)
	}
	return protocol.NewRoleSet(roles...), nil
}
