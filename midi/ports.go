package midi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

var (
	// ErrPortTimeout is returned when the driver does not answer a listing.
	ErrPortTimeout = errors.New("midi: port listing timed out")
	// ErrNoPort is returned for an output port that does not exist.
	ErrNoPort = errors.New("midi: no such output port")
)

// listTimeout bounds port listing; CoreMIDI can hang when its server is wedged
// (fix: sudo killall coreaudiod midiserver).
const listTimeout = 3 * time.Second

// OutPorts returns the names of the MIDI output ports.
func OutPorts() ([]string, error) {
	return listPorts(func() []string {
		var names []string
		for _, p := range gomidi.GetOutPorts() {
			names = append(names, p.String())
		}
		return names
	})
}

// InPorts returns the names of the MIDI input ports.
func InPorts() ([]string, error) {
	return listPorts(func() []string {
		var names []string
		for _, p := range gomidi.GetInPorts() {
			names = append(names, p.String())
		}
		return names
	})
}

func listPorts(list func() []string) ([]string, error) {
	ch := make(chan []string, 1)
	go func() { ch <- list() }()

	select {
	case names := <-ch:
		return names, nil
	case <-time.After(listTimeout):
		return nil, ErrPortTimeout
	}
}

// Output sends events to MIDI output ports, opening each port on first use.
type Output struct {
	defaultPort string
	senders     map[string]func(gomidi.Message) error
	mu          sync.RWMutex
}

// NewOutput returns an output whose Send goes to defaultPort. An empty name
// picks the first port found.
func NewOutput(defaultPort string) *Output {
	return &Output{
		defaultPort: defaultPort,
		senders:     make(map[string]func(gomidi.Message) error),
	}
}

// DefaultPort returns the port Send writes to.
func (o *Output) DefaultPort() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.defaultPort
}

// Open resolves and opens the default port.
func (o *Output) Open() error {
	name := o.DefaultPort()
	if name == "" {
		names, err := OutPorts()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("open default output: %w", ErrNoPort)
		}
		name = names[0]
		o.mu.Lock()
		o.defaultPort = name
		o.mu.Unlock()
	}
	_, err := o.sender(name)
	return err
}

// sender returns the send function of a port, opening it if needed.
func (o *Output) sender(name string) (func(gomidi.Message) error, error) {
	o.mu.RLock()
	if send, ok := o.senders[name]; ok {
		o.mu.RUnlock()
		return send, nil
	}
	o.mu.RUnlock()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Double-check after acquiring write lock
	if send, ok := o.senders[name]; ok {
		return send, nil
	}
	for _, port := range gomidi.GetOutPorts() {
		if port.String() != name {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", name, err)
		}
		o.senders[name] = send
		return send, nil
	}
	return nil, fmt.Errorf("open %q: %w", name, ErrNoPort)
}

// Send writes ev to the default port.
func (o *Output) Send(ev Event) error {
	return o.SendTo(o.DefaultPort(), ev)
}

// SendTo writes ev to the named port.
func (o *Output) SendTo(port string, ev Event) error {
	msg := ev.Message()
	if msg == nil {
		return nil
	}
	send, err := o.sender(port)
	if err != nil {
		return err
	}
	return send(msg)
}

// Close releases every port and the driver.
func (o *Output) Close() {
	o.mu.Lock()
	o.senders = make(map[string]func(gomidi.Message) error)
	o.mu.Unlock()
	gomidi.CloseDriver()
}
