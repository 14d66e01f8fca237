package protocol

// Command identifies what a frame asks the server to do.
type Command int

const (
	// Unrecognized is any token outside the vocabulary. It is never encoded.
	Unrecognized Command = iota
	Input
	Rename
	AdminRename
	Setup
	Remove
	List
	UpdateServer
	Exit
	// Error marks a frame that failed to decode. It is never sent on purpose.
	Error
)

var commandTokens = map[Command]string{
	Input:        "INPUT",
	Rename:       "RENAME",
	AdminRename:  "AdminRename",
	Setup:        "SETUP",
	Remove:       "REMOVE",
	List:         "LIST",
	UpdateServer: "UpdateServer",
	Exit:         "EXIT",
	Error:        "ERROR",
}

var tokenCommands = func() map[string]Command {
	m := make(map[string]Command, len(commandTokens))
	for c, tok := range commandTokens {
		m[tok] = c
	}
	return m
}()

// Commands lists the vocabulary in wire order.
var Commands = []Command{Input, Rename, AdminRename, Setup, Remove, List, UpdateServer, Exit, Error}

// String returns the wire token, or "Unrecognized".
func (c Command) String() string {
	if tok, ok := commandTokens[c]; ok {
		return tok
	}
	return "Unrecognized"
}

// ParseCommand maps a wire token to its Command. Matching is case-sensitive;
// unknown tokens yield Unrecognized.
func ParseCommand(token string) Command {
	if c, ok := tokenCommands[token]; ok {
		return c
	}
	return Unrecognized
}

// HasPayload reports whether the command carries a JSON body.
func (c Command) HasPayload() bool {
	return c != Setup && c != Exit
}

// AdminOnly reports whether the command requires an admin digest.
func (c Command) AdminOnly() bool {
	switch c {
	case AdminRename, Remove, List, UpdateServer:
		return true
	}
	return false
}
