package connection

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const DefaultPort = 7711

// Credentials identify a server and how to connect to it.
type Credentials struct {
	Host     string
	Port     int
	Password string

	// ConnectTimeout bounds opening the connection, zero leaves it to the OS
	ConnectTimeout time.Duration

	// ResponseTimeout bounds each read, zero waits forever
	ResponseTimeout time.Duration
}

func (c Credentials) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Credentials) HasPassword() bool {
	return c.Password != ""
}

func (c Credentials) String() string {
	return c.Address()
}

// WithAddress returns a copy of c pointing to another server.
func (c Credentials) WithAddress(host string, port int) Credentials {
	c.Host = host
	c.Port = port
	return c
}

// ParseServer parses "host", "host:port" or ":port".
func ParseServer(server string) (Credentials, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return Credentials{}, fmt.Errorf("Invalid server: empty address")
	}

	if !strings.Contains(server, ":") {
		return Credentials{Host: server, Port: DefaultPort}, nil
	}

	host, rawPort, err := net.SplitHostPort(server)
	if err != nil {
		return Credentials{}, fmt.Errorf("Invalid server '%s': %w", server, err)
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return Credentials{}, fmt.Errorf("Invalid server '%s': bad port", server)
	}

	if host == "" {
		host = "127.0.0.1"
	}

	return Credentials{Host: host, Port: port}, nil
}

// ParseServers parses a list of servers, applying the password and timeouts
// of base to each of them.
func ParseServers(servers []string, base Credentials) ([]Credentials, error) {
	out := make([]Credentials, 0, len(servers))

	for _, server := range servers {
		creds, err := ParseServer(server)
		if err != nil {
			return nil, err
		}

		out = append(out, base.WithAddress(creds.Host, creds.Port))
	}

	return out, nil
}
