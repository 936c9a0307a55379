package config

import (
	"os"
	"sync"
)

// dockerHostAlias reaches services published on the host machine from inside a container.
const dockerHostAlias = "host.docker.internal"

var runningInDocker = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// ResolveHostForDocker rewrites loopback hosts to the Docker host alias when
// gamedash itself runs in a container, so a database or bastion on the
// operator's machine stays reachable.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, runningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if !inDocker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return dockerHostAlias
	}
	return host
}
