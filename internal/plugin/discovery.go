package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/plugkit/internal/protocol"
)

const manifestFilename = "manifest.yaml"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Registry holds discovered plugins indexed by ID.
type Registry struct {
	plugins map[string]*Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*Plugin),
	}
}

// Get retrieves a plugin by ID.
func (r *Registry) Get(id string) (*Plugin, bool) {
	p, ok := r.plugins[id]
	return p, ok
}

// All returns all registered plugins sorted by ID.
func (r *Registry) All() []*Plugin {
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add registers a plugin in the registry.
func (r *Registry) Add(plugin *Plugin) error {
	if _, exists := r.plugins[plugin.ID]; exists {
		return fmt.Errorf("plugin %q already registered", plugin.ID)
	}
	r.plugins[plugin.ID] = plugin
	return nil
}

// Enabled returns the plugins that are not disabled, sorted by ID.
func (r *Registry) Enabled() []*Plugin {
	all := r.All()
	out := all[:0]
	for _, p := range all {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	return out
}

// DiscoverOption configures Discover.
type DiscoverOption func(*discoverOptions)

type discoverOptions struct {
	disabled map[string]bool
}

// WithDisabled marks the plugins with these IDs as disabled. They are still
// loaded and listed, but never run.
func WithDisabled(ids ...string) DiscoverOption {
	return func(o *discoverOptions) {
		for _, id := range ids {
			o.disabled[id] = true
		}
	}
}

// Discover scans pluginsDir for manifest.yaml files. Invalid plugins are
// reported through logger and skipped.
func Discover(pluginsDir string, logger func(level, msg string, args ...any), opts ...DiscoverOption) (*Registry, error) {
	if logger == nil {
		logger = func(level, msg string, args ...any) {}
	}
	o := discoverOptions{disabled: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(pluginsDir) == "" {
		return nil, fmt.Errorf("plugins directory is required")
	}

	root, err := filepath.Abs(pluginsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plugins directory %q: %w", pluginsDir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plugins directory does not exist: %s", root)
		}
		return nil, fmt.Errorf("failed to stat plugins directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugins directory is not a directory: %s", root)
	}

	registry := NewRegistry()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != manifestFilename {
			return nil
		}

		pluginPath := filepath.Dir(path)
		plugin, err := Load(pluginPath, root)
		if err != nil {
			logger("warn", "failed to load plugin", "path", pluginPath, "error", err.Error())
			return nil
		}

		plugin.Disabled = o.disabled[plugin.ID]
		if err := registry.Add(plugin); err != nil {
			logger("warn", "duplicate plugin ignored (keeping first discovered)", "plugin", plugin.ID, "ignored_path", plugin.Path)
			return nil
		}

		logger("info", "loaded plugin", "plugin", plugin.ID, "path", plugin.Path, "version", plugin.Version, "disabled", plugin.Disabled)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plugins directory %s: %w", root, err)
	}

	return registry, nil
}

// ParseManifest decodes and validates manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", describeValidation(err))
	}
	return &m, nil
}

// Load reads and validates the plugin in pluginPath. pluginsDir bounds where
// a plugin-local executable may live.
func Load(pluginPath, pluginsDir string) (*Plugin, error) {
	pluginPath, err := filepath.Abs(pluginPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plugin path: %w", err)
	}
	manifestPath := filepath.Join(pluginPath, manifestFilename)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	errLog := protocol.ErrorLevel
	if manifest.ErrLog != "" {
		if errLog, err = protocol.ParseLevel(manifest.ErrLog); err != nil {
			return nil, fmt.Errorf("invalid errLog: %w", err)
		}
	}

	iface := manifest.Interface
	if iface == "" {
		iface = InterfaceRaw
	}

	execArgs := append([]string(nil), manifest.Exec...)
	if local, ok := pluginLocalProgram(execArgs[0], pluginPath); ok {
		if err := validateTrust(local, pluginPath, pluginsDir); err != nil {
			return nil, fmt.Errorf("trust validation failed: %w", err)
		}
		execArgs[0] = local
	} else if err := validateDir(pluginPath); err != nil {
		return nil, fmt.Errorf("trust validation failed: %w", err)
	}

	return &Plugin{
		ID:           filepath.Base(pluginPath),
		Name:         manifest.Name,
		Description:  manifest.Description,
		Version:      manifest.Version,
		URL:          manifest.URL,
		Path:         pluginPath,
		ManifestPath: manifestPath,
		Exec:         execArgs,
		Interface:    iface,
		ErrLog:       errLog,
		Tasks:        manifest.Tasks,
		Hash:         ManifestHash(data),
	}, nil
}

// pluginLocalProgram resolves a relative program against the plugin
// directory. A bare name found on PATH wins over a plugin-local file.
func pluginLocalProgram(program, pluginPath string) (string, bool) {
	if filepath.IsAbs(program) {
		return "", false
	}
	if !strings.ContainsRune(program, filepath.Separator) {
		if _, err := exec.LookPath(program); err == nil {
			return "", false
		}
	}
	local := filepath.Join(pluginPath, program)
	if !fileExists(local) {
		return "", false
	}
	return local, true
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Manifest.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// validateTrust checks a plugin-local executable: it must resolve inside
// both the plugins directory and the plugin directory, be executable, and
// the plugin directory must not be world-writable.
func validateTrust(execPath, pluginPath, pluginsDir string) error {
	resolvedExec, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("failed to resolve exec symlink: %w", err)
	}
	resolvedPluginPath, err := filepath.EvalSymlinks(pluginPath)
	if err != nil {
		return fmt.Errorf("failed to resolve plugin path symlink: %w", err)
	}

	if pluginsDir != "" {
		resolvedRoot, err := filepath.EvalSymlinks(pluginsDir)
		if err != nil {
			return fmt.Errorf("failed to resolve plugins directory symlink %s: %w", pluginsDir, err)
		}
		if !strings.HasPrefix(resolvedExec, resolvedRoot+string(os.PathSeparator)) {
			return fmt.Errorf("exec %s is not under the plugins directory", resolvedExec)
		}
	}
	if !strings.HasPrefix(resolvedExec, resolvedPluginPath+string(os.PathSeparator)) {
		return fmt.Errorf("exec %s is not under plugin directory %s", resolvedExec, resolvedPluginPath)
	}

	info, err := os.Stat(resolvedExec)
	if err != nil {
		return fmt.Errorf("exec not found: %w", err)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("exec is not executable: %s", resolvedExec)
	}

	return validateDir(resolvedPluginPath)
}

func validateDir(pluginPath string) error {
	info, err := os.Stat(pluginPath)
	if err != nil {
		return fmt.Errorf("plugin directory not found: %w", err)
	}
	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("plugin directory is world-writable: %s", pluginPath)
	}
	return nil
}
