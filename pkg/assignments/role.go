package assignments

import "fmt"

// Role is the ordered access level a user holds on a project or factor.
// The order is total and fixed: None < Lector < Comentador < Editor, so
// roles compare directly with < and the strongest of two grants is their max.
type Role int8

const (
	// RoleNone means no access; it is never stored, only resolved.
	RoleNone Role = iota
	RoleLector
	RoleComentador
	RoleEditor
)

var roleNames = map[Role]string{
	RoleNone:       "",
	RoleLector:     "lector",
	RoleComentador: "comentador",
	RoleEditor:     "editor",
}

func (r Role) String() string {
	return roleNames[r]
}

// Valid reports whether r is an assignable role (None is not assignable)
func (r Role) Valid() bool {
	return r >= RoleLector && r <= RoleEditor
}

// CanView reports whether the role grants read access (any role does)
func (r Role) CanView() bool {
	return r != RoleNone
}

// CanComment reports whether the role grants comment access
func (r Role) CanComment() bool {
	return r >= RoleComentador
}

// CanEdit reports whether the role grants full control
func (r Role) CanEdit() bool {
	return r == RoleEditor
}

// ParseRole converts a stored role name into a Role
func ParseRole(s string) (Role, error) {
	switch s {
	case "lector":
		return RoleLector, nil
	case "comentador":
		return RoleComentador, nil
	case "editor":
		return RoleEditor, nil
	case "":
		return RoleNone, nil
	}
	return RoleNone, fmt.Errorf("unknown role: %q", s)
}

// MaxRole returns the strongest of the given roles; None is the identity
func MaxRole(roles ...Role) Role {
	max := RoleNone
	for _, r := range roles {
		if r > max {
			max = r
		}
	}
	return max
}

// MarshalText implements encoding.TextMarshaler for JSON responses
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON requests
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
