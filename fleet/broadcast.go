package fleet

import (
	"context"

	"fleet-admin/remote"
)

// Broadcaster prefixes commands so that the same configuration text is
// written to a file right before the command starts, in one shell invocation.
type Broadcaster struct {
	text string
	path string
	sync string
}

// NewBroadcaster prepares the write-config command for text once
func NewBroadcaster(text, path string) *Broadcaster {
	return &Broadcaster{
		text: text,
		path: path,
		sync: "printf '%s' " + remote.Quote(text) + " > " + remote.Quote(path),
	}
}

// Text returns the configuration text every target receives
func (b *Broadcaster) Text() string {
	return b.text
}

// Path returns where the configuration is written
func (b *Broadcaster) Path() string {
	return b.path
}

// Command wraps a shell command line into a container argv that writes the
// config and then runs it
func (b *Broadcaster) Command(command string) []string {
	return []string{"/bin/sh", "-c", b.sync + " && " + command}
}

// Broadcast runs launch on every target concurrently with the argv produced
// by wrapping that target's primary command
func Broadcast[T any](
	ctx context.Context,
	b *Broadcaster,
	targets []*Target,
	primary func(t *Target) string,
	launch func(ctx context.Context, t *Target, argv []string) (T, error),
) []Outcome[T] {
	return Map(ctx, targets, func(ctx context.Context, t *Target) (T, error) {
		return launch(ctx, t, b.Command(primary(t)))
	})
}
