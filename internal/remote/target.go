package remote

import (
	"fmt"
	"net"
	"os/user"
	"strings"

	"github.com/mila-iqia/milatools/internal/config"
	"github.com/mila-iqia/milatools/internal/security"
	"github.com/mila-iqia/milatools/internal/sshconfig"
)

// maxJumpDepth bounds ProxyJump chains so a config that jumps through
// itself cannot recurse forever.
const maxJumpDepth = 3

// Target is everything needed to open an ssh connection to one host.
type Target struct {
	// Alias is the name the user typed, e.g. "mila".
	Alias         string
	Host          string
	Port          string
	User          string
	IdentityFiles []string
	// Jump, when set, is dialed first and the connection to Host is
	// tunneled through it.
	Jump *Target
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, t.Port)
}

func (t Target) String() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Host
}

// ResolveTarget fills a Target for alias from the ssh config at cfgPath,
// the same way ssh would: HostName, User, Port, IdentityFile and ProxyJump.
func ResolveTarget(cfgPath, alias string) (Target, error) {
	resolver, err := sshconfig.LoadResolver(cfgPath)
	if err != nil {
		return Target{}, err
	}
	return resolveTarget(resolver, alias, 0)
}

func resolveTarget(resolver *sshconfig.Resolver, alias string, depth int) (Target, error) {
	if depth > maxJumpDepth {
		return Target{}, fmt.Errorf("too many ProxyJump hops resolving %s", alias)
	}

	aliasUser, aliasHost, aliasPort := splitDestination(alias)
	t := Target{Alias: alias}

	hostName, err := resolver.Get(aliasHost, "HostName")
	if err != nil {
		return Target{}, err
	}
	if hostName == "" {
		hostName = aliasHost
	}
	t.Host = strings.ReplaceAll(hostName, "%h", aliasHost)
	if err := security.ValidateHostname(t.Host); err != nil {
		return Target{}, fmt.Errorf("HostName of %s: %w", alias, err)
	}

	if t.Port, err = resolver.Get(aliasHost, "Port"); err != nil {
		return Target{}, err
	}
	if aliasPort != "" {
		t.Port = aliasPort
	}
	if t.Port == "" {
		t.Port = config.DefaultSSHPort
	}

	if t.User, err = resolver.Get(aliasHost, "User"); err != nil {
		return Target{}, err
	}
	if aliasUser != "" {
		t.User = aliasUser
	}
	if t.User == "" {
		if u, err := user.Current(); err == nil {
			t.User = u.Username
		}
	}

	identities, err := resolver.GetAll(aliasHost, "IdentityFile")
	if err != nil {
		return Target{}, err
	}
	for _, id := range identities {
		t.IdentityFiles = append(t.IdentityFiles, config.ExpandHome(id))
	}

	jump, err := resolver.Get(aliasHost, "ProxyJump")
	if err != nil {
		return Target{}, err
	}
	if jump != "" && !strings.EqualFold(jump, "none") {
		// only the first hop of a comma-separated list is followed
		first, _, _ := strings.Cut(jump, ",")
		jt, err := resolveTarget(resolver, strings.TrimSpace(first), depth+1)
		if err != nil {
			return Target{}, fmt.Errorf("resolve ProxyJump of %s: %w", alias, err)
		}
		t.Jump = &jt
	}
	return t, nil
}

// splitDestination parses [user@]host[:port].
func splitDestination(dest string) (usr, host, port string) {
	host = dest
	if at := strings.LastIndex(host, "@"); at >= 0 {
		usr, host = host[:at], host[at+1:]
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		host, port = h, p
	}
	return usr, host, port
}
