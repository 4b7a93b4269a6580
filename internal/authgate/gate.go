// Package authgate runs authenticated actions with a cached credential and
// falls back to asking the user for it.
package authgate

import (
	"context"
	"errors"

	"srvpanel/internal/apierr"
	"srvpanel/internal/credentials"
	"srvpanel/internal/utils"

	"github.com/google/uuid"
)

// ErrInvalidCredential is returned when a freshly entered credential is
// rejected as well. The caller shows it as an "invalid password" notice.
var ErrInvalidCredential = errors.New("invalid credential")

// Action performs exactly one authenticated call using secret. It must
// report a 401 as an *apierr.Error of KindUnauthorized.
type Action func(ctx context.Context, secret string) error

// Prompter asks the user for a secret. ok=false means the prompt was
// dismissed. Prompt blocks until the user answers or ctx ends.
type Prompter interface {
	Prompt(ctx context.Context, title string) (secret string, ok bool, err error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, title string) (string, bool, error)

func (f PrompterFunc) Prompt(ctx context.Context, title string) (string, bool, error) {
	return f(ctx, title)
}

// Gate wraps actions with credential attachment and a single re-prompt.
// Different invocations are not serialized against each other: two
// concurrent actions may each open a prompt, and the last Set wins.
type Gate struct {
	store    credentials.Store
	prompter Prompter
	logger   *utils.Logger
}

// New builds a Gate.
func New(store credentials.Store, prompter Prompter, logger *utils.Logger) *Gate {
	return &Gate{store: store, prompter: prompter, logger: logger}
}

// Execute runs action at most twice: once with the cached credential for
// purpose (when one exists) and once after the user enters a new one.
//
// It returns nil on success and when the user cancels the prompt,
// ErrInvalidCredential when the entered credential is rejected, and any
// other action error unchanged.
func (g *Gate) Execute(ctx context.Context, purpose credentials.Purpose, title string, action Action) error {
	id := uuid.NewString()

	if secret, ok := g.store.Get(purpose); ok {
		err := action(ctx, secret)
		if err == nil {
			return nil
		}
		if !apierr.Is(err, apierr.KindUnauthorized) {
			return err
		}
		g.logf("[%s] cached %s credential rejected, asking again", id, purpose)
		g.purge(purpose)
	}

	secret, ok, err := g.prompter.Prompt(ctx, title)
	if err != nil {
		return err
	}
	if !ok || secret == "" {
		g.logf("[%s] %s prompt dismissed", id, purpose)
		return nil
	}
	if err := g.store.Set(purpose, secret); err != nil {
		g.logf("[%s] could not persist %s credential: %v", id, purpose, err)
	}

	err = action(ctx, secret)
	if err == nil {
		return nil
	}
	if apierr.Is(err, apierr.KindUnauthorized) {
		g.logf("[%s] entered %s credential rejected", id, purpose)
		g.purge(purpose)
		return ErrInvalidCredential
	}
	return err
}

func (g *Gate) purge(purpose credentials.Purpose) {
	if err := g.store.Clear(purpose); err != nil {
		g.logf("could not persist removal of %s credential: %v", purpose, err)
	}
}

func (g *Gate) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Writef(format, args...)
	}
}
