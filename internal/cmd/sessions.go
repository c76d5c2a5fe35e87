package cmd

// SessionsCmd manages sessions
type SessionsCmd struct {
	Del   SessionsDelCmd   `cmd:"del" help:"Delete a session"`
	List  SessionsListCmd  `cmd:"list" help:"List all sessions" default:"1"`
	Prune SessionsPruneCmd `cmd:"prune" help:"Delete sessions whose workspaces no longer exist"`
	View  SessionsViewCmd  `cmd:"view" help:"View a specific session"`
}
