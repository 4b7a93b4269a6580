package devhost

import (
	"net/http"
	"strconv"
	"sync"
)

// Reply is a runner answer: HTTP status plus plain-text body.
type Reply struct {
	Status int
	Body   string
}

func ok(body string) Reply { return Reply{Status: http.StatusOK, Body: body} }

// Runner simulates the managed game server: its power state, whether the
// game process runs, and its console output.
type Runner struct {
	mu       sync.Mutex
	awake    bool
	running  bool
	console  func(line string)
	maxSlots int
}

// NewRunner returns a runner whose console lines go to console. An asleep
// runner answers every request with 503 until woken.
func NewRunner(awake bool, console func(line string)) *Runner {
	return &Runner{
		awake:    awake,
		console:  console,
		maxSlots: 20,
	}
}

func (r *Runner) emit(line string) {
	if r.console != nil {
		r.console(line)
	}
}

func unavailable() Reply {
	return Reply{Status: http.StatusServiceUnavailable}
}

// Wake powers the machine on.
func (r *Runner) Wake() Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.awake {
		return ok("already awake!")
	}
	r.awake = true
	return ok("requested the server to wake up!")
}

// Awake reports the power state.
func (r *Runner) Awake() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.awake
}

// Running reports whether the game process is up.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) Start() Reply {
	r.mu.Lock()
	if !r.awake {
		r.mu.Unlock()
		return unavailable()
	}
	if r.running {
		r.mu.Unlock()
		return Reply{Status: http.StatusTooManyRequests, Body: "already running.."}
	}
	r.running = true
	r.mu.Unlock()

	r.emit("[Server thread/INFO]: Starting minecraft server")
	r.emit("[Server thread/INFO]: Done! For help, type \"help\"")
	return ok("ran!")
}

func (r *Runner) Stop() Reply {
	r.mu.Lock()
	if !r.awake {
		r.mu.Unlock()
		return unavailable()
	}
	if !r.running {
		r.mu.Unlock()
		return Reply{Status: http.StatusTooManyRequests, Body: "already stopped!"}
	}
	r.running = false
	r.mu.Unlock()

	r.emit("[Server thread/INFO]: Stopping the server")
	return ok("sent /stop!")
}

func (r *Runner) List() Reply {
	r.mu.Lock()
	if !r.awake {
		r.mu.Unlock()
		return unavailable()
	}
	if !r.running {
		r.mu.Unlock()
		return Reply{Status: http.StatusServiceUnavailable, Body: "server not on!"}
	}
	max := r.maxSlots
	r.mu.Unlock()

	r.emit("[Server thread/INFO]: There are 0 of a max of " + strconv.Itoa(max) + " players online:")
	return ok("sent /list!")
}

// Exec forwards cmd to the game console.
func (r *Runner) Exec(cmd string) Reply {
	r.mu.Lock()
	if !r.awake {
		r.mu.Unlock()
		return unavailable()
	}
	if !r.running {
		r.mu.Unlock()
		return Reply{Status: http.StatusServiceUnavailable, Body: "server not on!"}
	}
	r.mu.Unlock()

	r.emit("> " + cmd)
	return ok("executed command!")
}
