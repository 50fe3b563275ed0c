package model

// Actor is the authenticated caller, taken from the access token claims.
type Actor struct {
	UserID  string
	Email   string
	IsStaff bool
}

// CanAccess reports whether the actor may see or act on a resource owned by ownerID.
func (a Actor) CanAccess(ownerID string) bool {
	return a.IsStaff || a.UserID == ownerID
}
