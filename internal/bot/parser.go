package bot

import "strings"

// Command is the parsed form of a slash command. Handlers dispatch on the
// concrete type instead of re-matching strings.
type Command interface{ isCommand() }

type StartRequest struct{}

// CodeRequest asks for the caller's own code when SuppliedCode is empty,
// otherwise redeems the supplied code.
type CodeRequest struct {
	SuppliedCode string
}

type InvitesRequest struct{}

// PostVerifyRequest posts the verification prompt to the verify channel.
type PostVerifyRequest struct{}

func (StartRequest) isCommand()      {}
func (CodeRequest) isCommand()       {}
func (InvitesRequest) isCommand()    {}
func (PostVerifyRequest) isCommand() {}

// ParseCommand maps message text to a Command, nil when the text is not a
// recognized command. Bot-mention suffixes ("/code@SomeBot") are tolerated.
func ParseCommand(text string) Command {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}

	verb := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(verb, '@'); at >= 0 {
		verb = verb[:at]
	}

	switch verb {
	case "start":
		return StartRequest{}
	case "code":
		if len(fields) > 1 {
			return CodeRequest{SuppliedCode: fields[1]}
		}
		return CodeRequest{}
	case "invites":
		return InvitesRequest{}
	case "postverify":
		return PostVerifyRequest{}
	default:
		return nil
	}
}
