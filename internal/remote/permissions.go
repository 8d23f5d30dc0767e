package remote

// Permission is a bit set of channel permissions.
type Permission int64

const (
	PermissionAdministrator      Permission = 1 << 3
	PermissionViewChannel        Permission = 1 << 10
	PermissionSendMessages       Permission = 1 << 11
	PermissionReadMessageHistory Permission = 1 << 16

	PermissionAll Permission = -1
)

// Has reports whether every bit of q is set in p.
func (p Permission) Has(q Permission) bool { return p&q == q }

// OverwriteType says what an Overwrite applies to.
type OverwriteType int

const (
	OverwriteRole OverwriteType = iota
	OverwriteMember
)

// Overwrite adjusts the permissions of a role or member on one channel.
type Overwrite struct {
	ID    string
	Type  OverwriteType
	Allow Permission
	Deny  Permission
}

// PermissionsFor computes the effective permissions of userID on the
// channel. Channels without a guild grant everything. A user who is not
// a known member gets the @everyone permissions only.
func (c *Channel) PermissionsFor(userID string) Permission {
	g := c.Guild
	if g == nil {
		return PermissionAll
	}
	if userID != "" && userID == g.OwnerID {
		return PermissionAll
	}

	var memberRoles []string
	if m, ok := g.Members[userID]; ok {
		memberRoles = m.Roles
	}

	var perms Permission
	if everyone, ok := g.Roles[g.ID]; ok {
		perms = everyone.Permissions
	}
	for _, id := range memberRoles {
		if r, ok := g.Roles[id]; ok {
			perms |= r.Permissions
		}
	}
	if perms.Has(PermissionAdministrator) {
		return PermissionAll
	}

	for _, ow := range c.Overwrites {
		if ow.Type == OverwriteRole && ow.ID == g.ID {
			perms &^= ow.Deny
			perms |= ow.Allow
			break
		}
	}

	var allow, deny Permission
	for _, ow := range c.Overwrites {
		if ow.Type == OverwriteRole && ow.ID != g.ID && contains(memberRoles, ow.ID) {
			allow |= ow.Allow
			deny |= ow.Deny
		}
	}
	perms &^= deny
	perms |= allow

	for _, ow := range c.Overwrites {
		if ow.Type == OverwriteMember && ow.ID == userID {
			perms &^= ow.Deny
			perms |= ow.Allow
			break
		}
	}

	return perms
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
