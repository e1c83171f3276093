package command

import (
	"sort"
	"sync"
)

var (
	mu       sync.RWMutex
	registry = map[string]Command{}
)

// Register adds cmd under its name and aliases, applying middlewares in
// order so the first one listed runs outermost.
func Register(cmd Command, middlewares ...Middleware) {
	for i := len(middlewares) - 1; i >= 0; i-- {
		cmd = middlewares[i](cmd)
	}
	mu.Lock()
	defer mu.Unlock()
	registry[cmd.Name()] = cmd
	for _, a := range cmd.Aliases() {
		registry[a] = cmd
	}
}

func Get(name string) (Command, bool) {
	mu.RLock()
	defer mu.RUnlock()
	cmd, ok := registry[name]
	return cmd, ok
}

// All returns each registered command once, sorted by name.
func All() []Command {
	mu.RLock()
	defer mu.RUnlock()
	seen := map[string]bool{}
	var list []Command
	for _, cmd := range registry {
		if seen[cmd.Name()] {
			continue
		}
		list = append(list, cmd)
		seen[cmd.Name()] = true
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Reset drops every registered command.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Command{}
}
