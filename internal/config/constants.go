package config

// Cluster defaults
const (
	// ClientName is the name of the command-line tool
	ClientName = "mila"

	// ClusterAlias is the ssh alias of the login nodes
	ClusterAlias = "mila"

	// LoginHostname is the load-balanced login address
	LoginHostname = "login.server.mila.quebec"

	// LoginPort is the ssh port of the login nodes
	LoginPort = 2222

	// NodeDomain is the domain of every compute node
	NodeDomain = "server.mila.quebec"

	// DefaultSSHPort is used when neither the ssh config nor the flags set one
	DefaultSSHPort = "22"
)

// SSH configuration defaults
const (
	// Known hosts file management
	KnownHostsFileName = "known_hosts"
	SSHConfigDirName   = ".ssh"
	SSHConfigFileName  = "config"

	// SSH authentication timeouts
	SSHAuthTimeout    = 30 // seconds
	SSHConnectTimeout = 15 // seconds

	// ServerAliveInterval and ServerAliveCountMax written for the login alias
	ServerAliveInterval = 120
	ServerAliveCountMax = 5

	// ConnectTimeout written for the compute aliases; salloc may queue for a while
	ComputeConnectTimeout = 600
)

// Modern SSH key types in order of preference
var ModernKeyTypes = []string{
	"id_ed25519", // Ed25519 - fastest, most secure, smallest key size
	"id_ecdsa",   // ECDSA - good performance, secure elliptic curve
	"id_rsa",     // RSA - legacy support, discouraged for new keys
}

// Remote layout
const (
	// ControlDir holds one file per running `mila serve` job, relative to $HOME
	ControlDir = ".milatools/control"

	// DocsURL and IntranetURL are opened by `mila docs` and `mila intranet`
	DocsURL           = "https://docs.mila.quebec"
	DocsSearchURL     = "https://docs.mila.quebec/search.html?q=%s"
	IntranetURL       = "https://intranet.mila.quebec"
	IntranetSearchURL = "https://sites.google.com/search/mila.quebec/mila-intranet?query=%s&scope=site&showTabs=false"
)

// File permission constants
const (
	SecureFilePermissions      = 0600 // -rw-------
	SecureDirectoryPermissions = 0700 // drwx------
)

// DefaultCommandTimeout bounds one command on the login node (in seconds)
const DefaultCommandTimeout = 300

// Version and build information (will be set by build process)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
