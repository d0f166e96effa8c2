package command

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// UpdateOp is the kind of runtime change a loader reports.
type UpdateOp int

const (
	// UpdateAdd registers a command that was not present before.
	UpdateAdd UpdateOp = iota
	// UpdateRemove unregisters a command.
	UpdateRemove
	// UpdateReplace swaps the handler registered under an existing name.
	UpdateReplace
)

// Update is one add/remove/replace event pushed by a loader at runtime.
type Update struct {
	Op      UpdateOp
	Command Command
}

// Loader supplies commands to a server at setup time.
type Loader interface {
	// Load returns the commands this loader contributes.
	//
	// Returns:
	//   - The loaded commands, or an error that aborts server setup
	Load() ([]Command, error)
}

// UpdatingLoader is implemented by loaders that can change the command set
// after setup. The handler the registry installs applies the updates with a
// single atomic publish.
type UpdatingLoader interface {
	Loader

	// OnUpdate registers the callback invoked with each batch of updates.
	//
	// Parameters:
	//   - handler: Callback receiving update batches
	OnUpdate(handler func(updates []Update) error)
}

// StaticLoader is a Loader over a fixed command list.
type StaticLoader struct {
	commands []Command
}

// NewStaticLoader creates a loader that contributes exactly the given
// commands.
//
// Parameters:
//   - commands: The commands to load
//
// Returns:
//   - A new StaticLoader
func NewStaticLoader(commands ...Command) *StaticLoader {
	return &StaticLoader{commands: commands}
}

// Load implements Loader.
func (l *StaticLoader) Load() ([]Command, error) {
	return l.commands, nil
}

type entry struct {
	command Command
	filters []Filter
}

// Registry maps case-insensitive command keys to commands with their resolved
// filter chains. The mapping is immutable after each publish and swapped with
// an atomic reference exchange, so readers never lock. Updates are applied
// copy-on-write under a writer mutex.
type Registry struct {
	container     atomic.Value // map[string]entry
	globalFilters []Filter
	mu            sync.Mutex
}

// NewRegistry creates an empty registry. The global filters wrap every
// command, before any filters the command declares itself.
//
// Parameters:
//   - globalFilters: Filters applied to all commands, in order
//
// Returns:
//   - A new, empty Registry
func NewRegistry(globalFilters []Filter) *Registry {
	r := &Registry{globalFilters: globalFilters}
	r.container.Store(map[string]entry{})
	return r
}

// Build replaces the registry contents with the given commands in one
// publish. Duplicate names (case-insensitive) are rejected and nothing is
// published.
//
// Parameters:
//   - commands: The full command set
//
// Returns:
//   - An error on duplicate command names
func (r *Registry) Build(commands []Command) error {
	container := make(map[string]entry, len(commands))
	for _, cmd := range commands {
		key := strings.ToLower(cmd.Name())
		if _, exists := container[key]; exists {
			return fmt.Errorf("duplicate command name %q", cmd.Name())
		}

		container[key] = entry{command: cmd, filters: r.resolveFilters(cmd)}
	}

	r.mu.Lock()
	r.container.Store(container)
	r.mu.Unlock()
	return nil
}

// Apply applies a batch of loader updates copy-on-write and publishes the new
// mapping atomically. Readers observe either the old or the new mapping,
// never a partial one.
//
// Parameters:
//   - updates: The add/remove/replace events to apply
//
// Returns:
//   - An error if an add collides with an existing name
func (r *Registry) Apply(updates []Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.container.Load().(map[string]entry)
	next := make(map[string]entry, len(current)+len(updates))
	for k, v := range current {
		next[k] = v
	}

	for _, u := range updates {
		key := strings.ToLower(u.Command.Name())
		switch u.Op {
		case UpdateAdd:
			if _, exists := next[key]; exists {
				return fmt.Errorf("duplicate command name %q", u.Command.Name())
			}
			next[key] = entry{command: u.Command, filters: r.resolveFilters(u.Command)}
		case UpdateRemove:
			delete(next, key)
		case UpdateReplace:
			next[key] = entry{command: u.Command, filters: r.resolveFilters(u.Command)}
		}
	}

	r.container.Store(next)
	return nil
}

// Get looks up a command by key, case-insensitively.
//
// Parameters:
//   - key: The request key
//
// Returns:
//   - The command and its filter chain, or false if no command is registered
func (r *Registry) Get(key string) (Command, []Filter, bool) {
	container := r.container.Load().(map[string]entry)
	e, ok := container[strings.ToLower(key)]
	if !ok {
		return nil, nil, false
	}

	return e.command, e.filters, true
}

// Count returns the number of registered commands.
//
// Returns:
//   - The command count
func (r *Registry) Count() int {
	return len(r.container.Load().(map[string]entry))
}

func (r *Registry) resolveFilters(cmd Command) []Filter {
	var own []Filter
	if fc, ok := cmd.(FilteredCommand); ok {
		own = fc.Filters()
	}
	if len(r.globalFilters) == 0 && len(own) == 0 {
		return nil
	}

	filters := make([]Filter, 0, len(r.globalFilters)+len(own))
	filters = append(filters, r.globalFilters...)
	filters = append(filters, own...)
	return filters
}
