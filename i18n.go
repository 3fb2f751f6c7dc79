package main

import (
	"os"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Supported languages
const (
	LangEnglish = "en"
	LangFrench  = "fr"
)

var (
	// Global printer for internationalization
	printer *message.Printer

	// Synchronization for thread-safe access
	initI18nOnce sync.Once
	printerMu    sync.RWMutex

	// Available languages
	supportedLanguages = map[string]language.Tag{
		LangEnglish: language.English,
		LangFrench:  language.French,
	}
)

// initI18n initializes the internationalization system thread-safely
func initI18n(langFlag string) {
	initI18nOnce.Do(func() {
		registerMessages()
	})

	lang := determineLang(langFlag)

	tag, exists := supportedLanguages[lang]
	if !exists {
		tag = language.English
	}

	printerMu.Lock()
	printer = message.NewPrinter(tag)
	printerMu.Unlock()
}

// determineLang determines which language to use based on priority:
// 1. CLI flag (--lang) or the lang setting
// 2. Environment variable (MILATOOLS_LANG)
// 3. Standard locale environment variables (LC_ALL, LANG)
// 4. Default (English)
func determineLang(langFlag string) string {
	if langFlag != "" {
		return normalizeLanguage(langFlag)
	}
	if envLang := os.Getenv("MILATOOLS_LANG"); envLang != "" {
		return normalizeLanguage(envLang)
	}
	if envLang := os.Getenv("LC_ALL"); envLang != "" {
		return normalizeLanguage(envLang)
	}
	if envLang := os.Getenv("LANG"); envLang != "" {
		return normalizeLanguage(envLang)
	}
	return LangEnglish
}

// normalizeLanguage maps locale names such as fr_CA.UTF-8 to a supported code
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))

	switch {
	case strings.HasPrefix(lang, "fr") || lang == "french" || lang == "français":
		return LangFrench
	default:
		return LangEnglish
	}
}

// registerMessages registers all translatable messages
func registerMessages() {
	// Root command
	message.SetString(language.English, "root_short", "Tools to connect to and work on the Mila cluster")
	message.SetString(language.French, "root_short", "Outils pour se connecter et travailler sur la grappe de Mila")
	message.SetString(language.English, "root_long", "set up ssh access to the Mila cluster, manage ~/.ssh/config and persistent servers")
	message.SetString(language.French, "root_long", "configure l'accès ssh à la grappe de Mila, gère ~/.ssh/config et les serveurs persistants")

	// Global flags
	message.SetString(language.English, "flag_ssh_config_help", "Path to the ssh config file (default ~/.ssh/config)")
	message.SetString(language.French, "flag_ssh_config_help", "Chemin du fichier de configuration ssh (défaut ~/.ssh/config)")
	message.SetString(language.English, "flag_verbose_help", "Enable verbose logging")
	message.SetString(language.French, "flag_verbose_help", "Activer la journalisation détaillée")
	message.SetString(language.English, "flag_lang_help", "Language for messages (en, fr)")
	message.SetString(language.French, "flag_lang_help", "Langue des messages (en, fr)")
	message.SetString(language.English, "flag_yes_help", "Answer yes to every confirmation")
	message.SetString(language.French, "flag_yes_help", "Répondre oui à toutes les confirmations")

	// docs and intranet
	message.SetString(language.English, "docs_short", "Open the Mila cluster documentation")
	message.SetString(language.French, "docs_short", "Ouvrir la documentation de la grappe de Mila")
	message.SetString(language.English, "intranet_short", "Open the Mila intranet in a browser")
	message.SetString(language.French, "intranet_short", "Ouvrir l'intranet de Mila dans un navigateur")
	message.SetString(language.English, "opening_url", "Opening %s")
	message.SetString(language.French, "opening_url", "Ouverture de %s")

	// init
	message.SetString(language.English, "init_short", "Set up your configuration and credentials")
	message.SetString(language.French, "init_short", "Configurer vos accès et identifiants")
	message.SetString(language.English, "init_long", "Adds the mila, mila-cpu, mila-gpu and compute node entries to your ssh config, then checks that the login node accepts your key.")
	message.SetString(language.French, "init_long", "Ajoute les entrées mila, mila-cpu, mila-gpu et nœuds de calcul à votre configuration ssh, puis vérifie que le nœud de connexion accepte votre clé.")
	message.SetString(language.English, "init_checking", "Checking ssh config %s")
	message.SetString(language.French, "init_checking", "Vérification de la configuration ssh %s")
	message.SetString(language.English, "init_username_prompt", "What is your username on the Mila cluster?")
	message.SetString(language.French, "init_username_prompt", "Quel est votre nom d'utilisateur sur la grappe de Mila ?")
	message.SetString(language.English, "init_username_required", "a username is required")
	message.SetString(language.French, "init_username_required", "un nom d'utilisateur est requis")
	message.SetString(language.English, "init_host_present", "Host %s is already configured, leaving it unchanged")
	message.SetString(language.French, "init_host_present", "L'hôte %s est déjà configuré, il n'est pas modifié")
	message.SetString(language.English, "init_confirm_add", "Add Host %s to your ssh config?")
	message.SetString(language.French, "init_confirm_add", "Ajouter l'hôte %s à votre configuration ssh ?")
	message.SetString(language.English, "init_host_skipped", "Skipped Host %s")
	message.SetString(language.French, "init_host_skipped", "Hôte %s ignoré")
	message.SetString(language.English, "init_config_written", "✓ Wrote %s")
	message.SetString(language.French, "init_config_written", "✓ %s écrit")
	message.SetString(language.English, "init_nothing_to_do", "Your ssh config is already set up")
	message.SetString(language.French, "init_nothing_to_do", "Votre configuration ssh est déjà prête")
	message.SetString(language.English, "init_settings_not_saved", "⚠️  Could not save settings: %v")
	message.SetString(language.French, "init_settings_not_saved", "⚠️  Impossible d'enregistrer les paramètres : %v")
	message.SetString(language.English, "init_checking_access", "Checking passwordless access to %s")
	message.SetString(language.French, "init_checking_access", "Vérification de l'accès sans mot de passe à %s")
	message.SetString(language.English, "init_ssh_missing", "⚠️  ssh is not installed, skipping the access check")
	message.SetString(language.French, "init_ssh_missing", "⚠️  ssh n'est pas installé, vérification de l'accès ignorée")
	message.SetString(language.English, "init_passwordless_ok", "✓ Passwordless access to %s works")
	message.SetString(language.French, "init_passwordless_ok", "✓ L'accès sans mot de passe à %s fonctionne")
	message.SetString(language.English, "init_passwordless_missing", "⚠️  %s asked for a password")
	message.SetString(language.French, "init_passwordless_missing", "⚠️  %s a demandé un mot de passe")
	message.SetString(language.English, "init_confirm_copy_id", "Create an ssh key if needed and install it on the cluster?")
	message.SetString(language.French, "init_confirm_copy_id", "Créer une clé ssh au besoin et l'installer sur la grappe ?")
	message.SetString(language.English, "init_key_installed", "✓ Key installed on %s")
	message.SetString(language.French, "init_key_installed", "✓ Clé installée sur %s")

	// config
	message.SetString(language.English, "config_short", "Manage Host entries in the ssh config")
	message.SetString(language.French, "config_short", "Gérer les entrées Host de la configuration ssh")
	message.SetString(language.English, "config_long", "Add, inspect, rename and remove Host stanzas. Directive names are checked against ssh_config(5) and written in their canonical spelling.")
	message.SetString(language.French, "config_long", "Ajouter, consulter, renommer et supprimer des blocs Host. Les noms de directives sont vérifiés selon ssh_config(5) et écrits dans leur graphie canonique.")
	message.SetString(language.English, "config_examples", "  mila config add cn-a001 hostname=cn-a001.server.mila.quebec user=bob\n  mila config show mila --yaml\n  mila config get mila Port")
	message.SetString(language.French, "config_examples", "  mila config add cn-a001 hostname=cn-a001.server.mila.quebec user=bob\n  mila config show mila --yaml\n  mila config get mila Port")
	message.SetString(language.English, "config_show_short", "Show a Host stanza")
	message.SetString(language.French, "config_show_short", "Afficher un bloc Host")
	message.SetString(language.English, "flag_yaml_help", "Print the directives as YAML")
	message.SetString(language.French, "flag_yaml_help", "Afficher les directives en YAML")
	message.SetString(language.English, "config_add_short", "Add or update directives of a Host stanza")
	message.SetString(language.French, "config_add_short", "Ajouter ou modifier les directives d'un bloc Host")
	message.SetString(language.English, "config_get_short", "Print the value ssh would use for a directive")
	message.SetString(language.French, "config_get_short", "Afficher la valeur qu'utiliserait ssh pour une directive")
	message.SetString(language.English, "config_remove_short", "Remove a Host stanza")
	message.SetString(language.French, "config_remove_short", "Supprimer un bloc Host")
	message.SetString(language.English, "config_rename_short", "Rename a Host stanza")
	message.SetString(language.French, "config_rename_short", "Renommer un bloc Host")
	message.SetString(language.English, "config_keys_short", "List the directives that can be written")
	message.SetString(language.French, "config_keys_short", "Lister les directives reconnues")
	message.SetString(language.English, "config_check_short", "Report unknown directives and malformed values")
	message.SetString(language.French, "config_check_short", "Signaler les directives inconnues et les valeurs invalides")
	message.SetString(language.English, "config_host_added", "✓ Added Host %s")
	message.SetString(language.French, "config_host_added", "✓ Hôte %s ajouté")
	message.SetString(language.English, "config_host_updated", "✓ Updated Host %s")
	message.SetString(language.French, "config_host_updated", "✓ Hôte %s mis à jour")
	message.SetString(language.English, "config_host_removed", "✓ Removed Host %s")
	message.SetString(language.French, "config_host_removed", "✓ Hôte %s supprimé")
	message.SetString(language.English, "config_host_renamed", "✓ Renamed Host %s to %s")
	message.SetString(language.French, "config_host_renamed", "✓ Hôte %s renommé en %s")
	message.SetString(language.English, "config_confirm_remove", "Remove Host %s?")
	message.SetString(language.French, "config_confirm_remove", "Supprimer l'hôte %s ?")
	message.SetString(language.English, "config_check_ok", "✓ No problems found in %s")
	message.SetString(language.French, "config_check_ok", "✓ Aucun problème trouvé dans %s")
	message.SetString(language.English, "config_check_failed", "%d problems found")
	message.SetString(language.French, "config_check_failed", "%d problèmes trouvés")
	message.SetString(language.English, "keys_header_directive", "Directive")
	message.SetString(language.French, "keys_header_directive", "Directive")
	message.SetString(language.English, "keys_header_kind", "Value")
	message.SetString(language.French, "keys_header_kind", "Valeur")
	message.SetString(language.English, "keys_header_values", "Accepted literals")
	message.SetString(language.French, "keys_header_values", "Valeurs acceptées")

	// Prompts
	message.SetString(language.English, "cancelled", "Cancelled")
	message.SetString(language.French, "cancelled", "Annulé")
	message.SetString(language.English, "answer_yes", "Yes")
	message.SetString(language.French, "answer_yes", "Oui")
	message.SetString(language.English, "answer_no", "No")
	message.SetString(language.French, "answer_no", "Non")

	// serve
	message.SetString(language.English, "serve_short", "Manage persistent servers on the cluster")
	message.SetString(language.French, "serve_short", "Gérer les serveurs persistants sur la grappe")
	message.SetString(language.English, "serve_list_short", "List persistent servers")
	message.SetString(language.French, "serve_list_short", "Lister les serveurs persistants")
	message.SetString(language.English, "flag_purge_help", "Cancel and forget dead servers")
	message.SetString(language.French, "flag_purge_help", "Annuler et oublier les serveurs morts")
	message.SetString(language.English, "serve_kill_short", "Stop a persistent server")
	message.SetString(language.French, "serve_kill_short", "Arrêter un serveur persistant")
	message.SetString(language.English, "flag_all_help", "Stop every persistent server")
	message.SetString(language.French, "flag_all_help", "Arrêter tous les serveurs persistants")
	message.SetString(language.English, "serve_none", "No persistent servers")
	message.SetString(language.French, "serve_none", "Aucun serveur persistant")
	message.SetString(language.English, "serve_unreadable", "⚠️  Could not read server %s: %v")
	message.SetString(language.French, "serve_unreadable", "⚠️  Impossible de lire le serveur %s : %v")
	message.SetString(language.English, "serve_kill_needs_id", "Please give the name of the server to kill")
	message.SetString(language.French, "serve_kill_needs_id", "Veuillez donner le nom du serveur à arrêter")
	message.SetString(language.English, "serve_killed", "✓ Stopped %s")
	message.SetString(language.French, "serve_killed", "✓ %s arrêté")

	// version
	message.SetString(language.English, "version_short", "Show version information")
	message.SetString(language.French, "version_short", "Afficher les informations de version")
	message.SetString(language.English, "flag_short_help", "Print only the version number")
	message.SetString(language.French, "flag_short_help", "Afficher seulement le numéro de version")
	message.SetString(language.English, "flag_commit_help", "Include the commit and build time")
	message.SetString(language.French, "flag_commit_help", "Inclure le commit et la date de compilation")
}

// T returns a localized string using the global printer thread-safely
func T(key string, args ...interface{}) string {
	printerMu.RLock()
	p := printer
	printerMu.RUnlock()

	if p == nil {
		initI18n("")
		printerMu.RLock()
		p = printer
		printerMu.RUnlock()
	}

	return p.Sprintf(key, args...)
}

// detectLanguageFromArgs parses command line arguments early to detect --lang flag
// This allows us to initialize i18n with the correct language before creating Cobra commands
func detectLanguageFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--lang" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--lang=") {
			return strings.TrimPrefix(arg, "--lang=")
		}
	}
	return ""
}

// initI18nForCLI initializes i18n early for Cobra CLI with language detection from args
func initI18nForCLI(args []string) {
	initI18n(detectLanguageFromArgs(args))
}
