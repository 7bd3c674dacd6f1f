package dispatch

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/infra/config"
)

// ErrUnknownAction is returned when a command names an unregistered action.
var ErrUnknownAction = errors.New("unknown action")

// Command describes a configured command token.
type Command struct {
	Token       string
	Action      string
	Description string
}

// Dispatcher routes command tokens to their configured actions.
type Dispatcher struct {
	env      *Env
	commands map[string]Action
}

// New builds the command table. Every command must name a registered
// action whose settings validate against the board.
func New(env *Env, commands map[string]config.CommandConfig) (*Dispatcher, error) {
	d := &Dispatcher{
		env:      env,
		commands: make(map[string]Action, len(commands)),
	}

	for token, cmd := range commands {
		factory, ok := registry[cmd.Action]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownAction, "command %q: action %q", token, cmd.Action)
		}
		a := factory()
		if err := a.Configure(env.Board, cmd.Settings); err != nil {
			return nil, errors.Wrapf(err, "command %q", token)
		}
		d.commands[token] = a
		zlog.Debug().Msgf("dispatch: command registered: token=%s action=%s", token, cmd.Action)
	}
	return d, nil
}

// Dispatch runs the action bound to token. Unknown tokens only log.
func (d *Dispatcher) Dispatch(ctx context.Context, token string) {
	token = strings.TrimSpace(token)
	a, ok := d.commands[token]
	if !ok {
		zlog.Warn().Msgf("dispatch: unknown command: token=%q", token)
		return
	}
	zlog.Info().Msgf("dispatch: command received: token=%s action=%s", token, a.Name())
	a.Execute(ctx, d.env)
}

// Commands returns the configured commands ordered by token.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.commands))
	for token, a := range d.commands {
		out = append(out, Command{Token: token, Action: a.Name(), Description: a.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}
