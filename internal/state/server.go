package state

// Server is one linked server on the network.
type Server struct {
	// ID is the registry key: the SID for TS6-family dialects, the
	// server name for dialects without SIDs.
	ID          string
	Name        string
	Description string
	Hops        int

	// Via is the ID of the server this one is linked behind: the origin
	// of its introduction, or empty for our direct uplink.
	Via string

	users map[string]*User
}

// Users returns the users introduced by this server, keyed by user ID.
func (s *Server) Users() map[string]*User {
	return s.users
}

// AddUser records a user as introduced by this server.
func (s *Server) AddUser(u *User) {
	s.users[u.ID] = u
}

// DeleteUser removes a user from this server's set.
func (s *Server) DeleteUser(u *User) {
	delete(s.users, u.ID)
}

func (s *Server) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
