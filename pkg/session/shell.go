package session

import (
	"context"
	"errors"
	"strings"

	"github.com/marmos91/dittosh/internal/logger"
	"github.com/marmos91/dittosh/pkg/protocol"
	"github.com/marmos91/dittosh/pkg/vfs"
)

// Fixed shell replies.
const (
	MsgGoodbye        = "Goodbye"
	MsgUnknownCommand = "Unknown command"
	MsgUsagePwd       = "Usage: pwd"
	MsgUsageLs        = "Usage: ls"
	MsgUsageCd        = "Usage: cd <directory>"
	MsgUsageExit      = "Usage: exit"
	MsgAtRoot         = "cd: already at root"
)

// verbs bounds the metric label set; anything else is reported as "other".
var verbs = map[string]bool{"pwd": true, "ls": true, "cd": true, "exit": true}

// exec runs one command line and returns the reply plus the verb label.
func (s *Session) exec(ctx context.Context, line string) (protocol.CommandResponse, string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return ok(""), ""
	}

	verb, args := args[0], args[1:]
	label := verb
	if !verbs[verb] {
		label = "other"
	}

	var resp protocol.CommandResponse
	switch verb {
	case "pwd":
		resp = s.pwd(args)
	case "ls":
		resp = s.ls(args)
	case "cd":
		resp = s.cd(args)
	case "exit":
		if len(args) > 0 {
			resp = fail(MsgUsageExit)
		} else {
			resp = ok(MsgGoodbye)
		}
	default:
		resp = fail(MsgUnknownCommand)
	}

	logger.DebugCtx(ctx, "Command executed",
		logger.KeyCommand, label,
		logger.KeyPath, s.tree.Pwd(s.cwd),
		logger.KeySuccess, resp.Success)
	return resp, label
}

func (s *Session) pwd(args []string) protocol.CommandResponse {
	if len(args) > 0 {
		return fail(MsgUsagePwd)
	}
	return ok(s.tree.Pwd(s.cwd))
}

func (s *Session) ls(args []string) protocol.CommandResponse {
	if len(args) > 0 {
		return fail(MsgUsageLs)
	}
	return ok(strings.Join(s.tree.Ls(s.cwd), "\n"))
}

func (s *Session) cd(args []string) protocol.CommandResponse {
	switch len(args) {
	case 0:
		s.cwd = vfs.Root
		return ok(s.tree.Pwd(s.cwd))
	case 1:
	default:
		return fail(MsgUsageCd)
	}

	target := args[0]
	next, err := s.tree.Resolve(s.cwd, target)
	switch {
	case err == nil:
		s.cwd = next
		return ok(s.tree.Pwd(next))
	case errors.Is(err, vfs.ErrAtRoot):
		return fail(MsgAtRoot)
	case errors.Is(err, vfs.ErrNotDir):
		return fail("cd: not a directory: " + target)
	default:
		return fail("cd: no such directory: " + target)
	}
}

func ok(text string) protocol.CommandResponse {
	return protocol.CommandResponse{Text: text, Success: true}
}

func fail(text string) protocol.CommandResponse {
	return protocol.CommandResponse{Text: text, Success: false}
}
