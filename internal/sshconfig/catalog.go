// Package sshconfig knows which directives may appear in an OpenSSH client
// configuration stanza and converts host entries between the lowercase form
// used for lookups and the mixed-case form written to ~/.ssh/config.
//
// Directive descriptions live in ssh_config(5):
// https://man.openbsd.org/OpenBSD-6.2/ssh_config
package sshconfig

import (
	"fmt"
	"strings"
)

// ValueKind describes the shape of the argument a directive accepts.
type ValueKind int

const (
	// KindString is a free-form argument.
	KindString ValueKind = iota
	// KindEnum is one of a fixed set of literals.
	KindEnum
	// KindInt is a decimal integer.
	KindInt
	// KindIntOrEnum is either a decimal integer or one of a fixed set of literals.
	KindIntOrEnum
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindInt:
		return "int"
	case KindIntOrEnum:
		return "int|enum"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Directive is one recognized ssh_config keyword.
type Directive struct {
	// Name is the canonical spelling, e.g. "HostName" or "IPQoS".
	Name string
	Kind ValueKind
	// Values holds the accepted literals for KindEnum and KindIntOrEnum.
	Values []string
}

var (
	yesNo            = []string{"yes", "no"}
	addKeysToAgent   = []string{"yes", "confirm", "ask", "no"}
	addressFamily    = []string{"any", "inet", "inet6"}
	canonicalizeHost = []string{"yes", "no", "always"}
	controlMaster    = []string{"yes", "no", "ask", "auto", "autoask"}
	controlPersist   = []string{"no", "yes"}
	fingerprintHash  = []string{"md5", "sha256"}
	requestTTY       = []string{"no", "yes", "force", "auto"}
	strictHostKey    = []string{"yes", "accept-new", "no", "off", "ask"}
	tunnel           = []string{"yes", "point-to-point", "ethernet", "no"}
	updateHostKeys   = []string{"yes", "no", "ask"}

	ipQoSClasses = []string{
		"af11", "af12", "af13",
		"af21", "af22", "af23",
		"af31", "af32", "af33",
		"af41", "af42", "af43",
		"cs0", "cs1", "cs2", "cs3", "cs4", "cs5", "cs6", "cs7",
		"ef", "lowdelay", "throughput", "reliability",
	}
	logLevels = []string{
		"QUIET", "FATAL", "ERROR", "INFO", "VERBOSE",
		"DEBUG", "DEBUG1", "DEBUG2", "DEBUG3",
	}
	syslogFacilities = []string{
		"DAEMON", "USER", "AUTH",
		"LOCAL0", "LOCAL1", "LOCAL2", "LOCAL3", "LOCAL4", "LOCAL5", "LOCAL6", "LOCAL7",
	}
)

func str(name string) Directive     { return Directive{Name: name, Kind: KindString} }
func integer(name string) Directive { return Directive{Name: name, Kind: KindInt} }
func flag(name string) Directive    { return Directive{Name: name, Kind: KindEnum, Values: yesNo} }

func enum(name string, values []string) Directive {
	return Directive{Name: name, Kind: KindEnum, Values: values}
}

func intOrEnum(name string, values []string) Directive {
	return Directive{Name: name, Kind: KindIntOrEnum, Values: values}
}

// catalog lists every directive of ssh_config(5) for OpenSSH as shipped with
// OpenBSD 6.2, in manual order with Host and Match first.
var catalog = []Directive{
	str("Host"),
	str("Match"),
	enum("AddKeysToAgent", addKeysToAgent),
	enum("AddressFamily", addressFamily),
	flag("BatchMode"),
	str("BindAddress"),
	str("CanonicalDomains"),
	flag("CanonicalizeFallbackLocal"),
	enum("CanonicalizeHostname", canonicalizeHost),
	integer("CanonicalizeMaxDots"),
	str("CanonicalizePermittedCNAMEs"),
	str("CertificateFile"),
	flag("ChallengeResponseAuthentication"),
	flag("CheckHostIP"),
	str("Ciphers"),
	flag("ClearAllForwardings"),
	flag("Compression"),
	integer("ConnectionAttempts"),
	integer("ConnectTimeout"),
	enum("ControlMaster", controlMaster),
	str("ControlPath"),
	intOrEnum("ControlPersist", controlPersist),
	str("DynamicForward"),
	flag("EnableSSHKeysign"),
	str("EscapeChar"),
	flag("ExitOnForwardFailure"),
	enum("FingerprintHash", fingerprintHash),
	flag("ForwardAgent"),
	flag("ForwardX11"),
	str("ForwardX11Timeout"),
	flag("ForwardX11Trusted"),
	flag("GatewayPorts"),
	str("GlobalKnownHostsFile"),
	flag("GSSAPIAuthentication"),
	flag("GSSAPIDelegateCredentials"),
	flag("HashKnownHosts"),
	flag("HostbasedAuthentication"),
	str("HostbasedKeyTypes"),
	str("HostKeyAlgorithms"),
	str("HostKeyAlias"),
	str("HostName"),
	flag("IdentitiesOnly"),
	str("IdentityAgent"),
	str("IdentityFile"),
	str("IgnoreUnknown"),
	str("Include"),
	intOrEnum("IPQoS", ipQoSClasses),
	flag("KbdInteractiveAuthentication"),
	str("KbdInteractiveDevices"),
	str("KexAlgorithms"),
	str("LocalCommand"),
	str("LocalForward"),
	enum("LogLevel", logLevels),
	str("MACs"),
	flag("NoHostAuthenticationForLocalhost"),
	integer("NumberOfPasswordPrompts"),
	flag("PasswordAuthentication"),
	flag("PermitLocalCommand"),
	str("PKCS11Provider"),
	integer("Port"),
	str("PreferredAuthentications"),
	str("ProxyCommand"),
	str("ProxyJump"),
	str("ProxyUseFdpass"),
	str("PubkeyAcceptedKeyTypes"),
	flag("PubkeyAuthentication"),
	str("RekeyLimit"),
	str("RemoteCommand"),
	str("RemoteForward"),
	enum("RequestTTY", requestTTY),
	str("RevokedHostKeys"),
	str("SendEnv"),
	integer("ServerAliveCountMax"),
	integer("ServerAliveInterval"),
	str("StreamLocalBindMask"),
	flag("StreamLocalBindUnlink"),
	enum("StrictHostKeyChecking", strictHostKey),
	enum("SyslogFacility", syslogFacilities),
	flag("TCPKeepAlive"),
	enum("Tunnel", tunnel),
	str("TunnelDevice"),
	enum("UpdateHostKeys", updateHostKeys),
	flag("UsePrivilegedPort"),
	str("User"),
	str("UserKnownHostsFile"),
	flag("VerifyHostKeyDNS"),
	flag("VisualHostKey"),
	str("XAuthLocation"),
}

// Derived from catalog once at init and never mutated afterwards.
var (
	lowercaseToCanonical    map[string]string
	canonicalToLowercase    map[string]string
	recognizedLowercaseKeys map[string]struct{}
	directiveByLowercase    map[string]Directive
)

func init() {
	lowercaseToCanonical = make(map[string]string, len(catalog))
	canonicalToLowercase = make(map[string]string, len(catalog))
	recognizedLowercaseKeys = make(map[string]struct{}, len(catalog))
	directiveByLowercase = make(map[string]Directive, len(catalog))

	for _, d := range catalog {
		lower := strings.ToLower(d.Name)
		if prev, dup := lowercaseToCanonical[lower]; dup {
			panic(fmt.Sprintf("sshconfig: directives %q and %q collide when lowercased", prev, d.Name))
		}
		lowercaseToCanonical[lower] = d.Name
		canonicalToLowercase[d.Name] = lower
		recognizedLowercaseKeys[lower] = struct{}{}
		directiveByLowercase[lower] = d
	}
}

// Directives returns a copy of the catalog in manual order.
func Directives() []Directive {
	out := make([]Directive, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the directive for key, matched case-insensitively.
func Lookup(key string) (Directive, bool) {
	d, ok := directiveByLowercase[strings.ToLower(key)]
	return d, ok
}

// CanonicalName returns the canonical spelling of key, matched case-insensitively.
func CanonicalName(key string) (string, bool) {
	name, ok := lowercaseToCanonical[strings.ToLower(key)]
	return name, ok
}

// IsRecognizedKey reports whether key names a catalog directive, ignoring case.
func IsRecognizedKey(key string) bool {
	_, ok := recognizedLowercaseKeys[strings.ToLower(key)]
	return ok
}
