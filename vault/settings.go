package vault

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/logger"
)

const (
	settingsDir         = ".obsidian"
	corePluginsFile     = "core-plugins.json"
	communityPluginFile = "community-plugins.json"
	appearanceFile      = "appearance.json"
)

var backupFiles = []string{
	"app.json",
	appearanceFile,
	corePluginsFile,
	communityPluginFile,
	"hotkeys.json",
	"workspace.json",
}

// InstalledPlugin describes a plugin directory under .obsidian/plugins.
type InstalledPlugin struct {
	ID      string `json:"id"`
	Dir     string `json:"dir"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Author  string `json:"author,omitempty"`
}

// Plugins is the plugin state of a vault.
type Plugins struct {
	Core      []string          `json:"core"`
	Community []string          `json:"community"`
	Installed []InstalledPlugin `json:"installed"`
}

// SettingsDir returns the absolute .obsidian path.
func (v *Vault) SettingsDir() string { return filepath.Join(v.root, settingsDir) }

func (v *Vault) settingsPath(name string) (string, error) {
	full := filepath.Join(v.SettingsDir(), name)
	r, err := filepath.Rel(v.SettingsDir(), full)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", apperrors.InvalidInput("file", "path outside settings directory: "+name)
	}
	return full, nil
}

func readJSON(path string, def any) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return def, nil
		}
		return nil, fmt.Errorf("vault: read %s: %w", filepath.Base(path), err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return def, nil
	}
	return out, nil
}

func writeJSON(path string, obj any) error {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

func (v *Vault) readList(name string) ([]string, error) {
	path, err := v.settingsPath(name)
	if err != nil {
		return nil, err
	}
	raw, err := readJSON(path, []any{})
	if err != nil {
		return nil, err
	}
	items, _ := raw.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (v *Vault) readObject(name string) (map[string]any, error) {
	path, err := v.settingsPath(name)
	if err != nil {
		return nil, err
	}
	raw, err := readJSON(path, map[string]any{})
	if err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	return obj, nil
}

func (v *Vault) writeSettings(name string, obj any) error {
	path, err := v.settingsPath(name)
	if err != nil {
		return err
	}
	return writeJSON(path, obj)
}

// ListPlugins reports enabled core and community plugins and the plugin
// directories that are installed.
func (v *Vault) ListPlugins() (Plugins, error) {
	core, err := v.readList(corePluginsFile)
	if err != nil {
		return Plugins{}, err
	}
	community, err := v.readList(communityPluginFile)
	if err != nil {
		return Plugins{}, err
	}
	out := Plugins{Core: core, Community: community, Installed: []InstalledPlugin{}}

	manifests, _ := filepath.Glob(filepath.Join(v.SettingsDir(), "plugins", "*", "manifest.json"))
	sort.Strings(manifests)
	for _, m := range manifests {
		dir := filepath.Base(filepath.Dir(m))
		p := InstalledPlugin{ID: dir, Dir: dir}
		if data, err := os.ReadFile(m); err == nil {
			var man struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Version string `json:"version"`
				Author  string `json:"author"`
			}
			if json.Unmarshal(data, &man) == nil {
				if man.ID != "" {
					p.ID = man.ID
				}
				p.Name, p.Version, p.Author = man.Name, man.Version, man.Author
			}
		}
		out.Installed = append(out.Installed, p)
	}
	return out, nil
}

func (v *Vault) toggle(file, id string, enable bool) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("id", "plugin id is required")
	}
	list, err := v.readList(file)
	if err != nil {
		return err
	}
	if enable {
		if !slices.Contains(list, id) {
			list = append(list, id)
		}
	} else {
		list = slices.DeleteFunc(list, func(s string) bool { return s == id })
	}
	if err := v.writeSettings(file, list); err != nil {
		return err
	}
	v.log.Info("plugin toggled", logger.Fields("file", file, "id", id, "enabled", enable))
	return nil
}

// EnablePlugin adds id to the enabled community plugins.
func (v *Vault) EnablePlugin(id string) error { return v.toggle(communityPluginFile, id, true) }

// DisablePlugin removes id from the enabled community plugins.
func (v *Vault) DisablePlugin(id string) error { return v.toggle(communityPluginFile, id, false) }

// EnableCorePlugin adds id to the enabled core plugins.
func (v *Vault) EnableCorePlugin(id string) error { return v.toggle(corePluginsFile, id, true) }

// DisableCorePlugin removes id from the enabled core plugins.
func (v *Vault) DisableCorePlugin(id string) error { return v.toggle(corePluginsFile, id, false) }

// InstallPluginZip extracts a plugin archive into .obsidian/plugins and
// enables it. The target directory is dir when given, else the archive's
// single top-level directory, else fallback. A top-level directory shared
// by every entry is stripped. An existing directory is replaced. The
// returned id comes from manifest.json when present.
func (v *Vault) InstallPluginZip(data []byte, dir, fallback string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.InvalidInput("zip", "not a zip archive").WithCause(err)
	}
	top := topLevelDir(zr.File)
	name := dir
	if name == "" {
		name = top
	}
	if name == "" {
		name = fallback
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", apperrors.InvalidInput("dir", "invalid plugin directory "+name)
	}

	outDir := filepath.Join(v.SettingsDir(), "plugins", name)
	if err := os.RemoveAll(outDir); err != nil {
		return "", fmt.Errorf("vault: remove %s: %w", name, err)
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", fmt.Errorf("vault: create %s: %w", name, err)
	}
	for _, f := range zr.File {
		if err := extractFile(f, top, outDir); err != nil {
			return "", err
		}
	}

	id := name
	if raw, err := os.ReadFile(filepath.Join(outDir, "manifest.json")); err == nil {
		var man struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &man) == nil && man.ID != "" {
			id = man.ID
		}
	}
	if err := v.EnablePlugin(id); err != nil {
		return "", err
	}
	v.log.Info("plugin installed", logger.Fields("id", id, "dir", name, "files", len(zr.File)))
	return id, nil
}

// topLevelDir returns the directory every entry lives under, or "".
func topLevelDir(files []*zip.File) string {
	top := ""
	for _, f := range files {
		i := strings.Index(f.Name, "/")
		if i <= 0 {
			return ""
		}
		if top == "" {
			top = f.Name[:i]
		} else if f.Name[:i] != top {
			return ""
		}
	}
	return top
}

func extractFile(f *zip.File, top, outDir string) error {
	name := f.Name
	if top != "" {
		name = strings.TrimPrefix(name, top+"/")
		if name == "" {
			return nil
		}
	}
	target := filepath.Join(outDir, filepath.FromSlash(name))
	r, err := filepath.Rel(outDir, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(f.Name) {
		return apperrors.InvalidInput("zip", "entry escapes plugin directory: "+f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o750)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("vault: extract %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("vault: extract %s: %w", f.Name, err)
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("vault: extract %s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("vault: extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// SetTheme sets the community CSS theme in appearance.json.
func (v *Vault) SetTheme(name string) error {
	ap, err := v.readObject(appearanceFile)
	if err != nil {
		return err
	}
	ap["cssTheme"] = name
	return v.writeSettings(appearanceFile, ap)
}

func snippetStem(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".css")
}

func (v *Vault) enabledSnippets(ap map[string]any) []string {
	var out []string
	if list, ok := ap["enabledCssSnippets"].([]any); ok {
		for _, it := range list {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// EnableSnippet marks a CSS snippet as enabled. The ".css" suffix is
// optional; the enabled list is kept sorted.
func (v *Vault) EnableSnippet(name string) error {
	ap, err := v.readObject(appearanceFile)
	if err != nil {
		return err
	}
	ap["enabledCssSnippets"] = sortedUnique(append(v.enabledSnippets(ap), snippetStem(name)))
	return v.writeSettings(appearanceFile, ap)
}

// DisableSnippet removes a CSS snippet from the enabled list.
func (v *Vault) DisableSnippet(name string) error {
	ap, err := v.readObject(appearanceFile)
	if err != nil {
		return err
	}
	stem := snippetStem(name)
	enabled := slices.DeleteFunc(v.enabledSnippets(ap), func(s string) bool { return s == stem })
	if enabled == nil {
		enabled = []string{}
	}
	ap["enabledCssSnippets"] = enabled
	return v.writeSettings(appearanceFile, ap)
}

// WriteSnippet writes .obsidian/snippets/<name>.css and returns its path.
func (v *Vault) WriteSnippet(name, css string) (string, error) {
	if !strings.HasSuffix(name, ".css") {
		name += ".css"
	}
	path, err := v.settingsPath(filepath.Join("snippets", filepath.Base(name)))
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, []byte(css)); err != nil {
		return "", err
	}
	return path, nil
}

// SetSetting assigns value at a dot-separated key path inside a JSON file
// of .obsidian, creating intermediate objects as needed.
func (v *Vault) SetSetting(file, keyPath string, value any) error {
	var parts []string
	for _, p := range strings.Split(keyPath, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return apperrors.InvalidInput("path", "empty setting path")
	}
	data, err := v.readObject(file)
	if err != nil {
		return err
	}
	cur := data
	for _, key := range parts[:len(parts)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
	return v.writeSettings(file, data)
}

// BackupSettings copies the main settings files and the plugins and
// snippets directories to dir, defaulting to Backups/.obsidian inside the
// vault. It returns the backup directory.
func (v *Vault) BackupSettings(dir string) (string, error) {
	out := filepath.Join(v.root, "Backups", settingsDir)
	if dir != "" {
		out = expandHome(dir)
		if !filepath.IsAbs(out) {
			out = filepath.Join(v.root, out)
		}
	}
	if err := os.MkdirAll(out, 0o750); err != nil {
		return "", fmt.Errorf("vault: create backup dir: %w", err)
	}
	copied := 0
	for _, name := range backupFiles {
		data, err := os.ReadFile(filepath.Join(v.SettingsDir(), name))
		if err != nil {
			continue
		}
		if err := writeFileAtomic(filepath.Join(out, name), data); err != nil {
			return "", err
		}
		copied++
	}
	for _, sub := range []string{"plugins", "snippets"} {
		src := filepath.Join(v.SettingsDir(), sub)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(out, sub)
		if err := os.RemoveAll(dst); err != nil {
			return "", fmt.Errorf("vault: replace backup %s: %w", sub, err)
		}
		if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
			return "", fmt.Errorf("vault: copy %s: %w", sub, err)
		}
	}
	v.log.Info("settings backed up", logger.Fields("dir", out, "files", copied))
	return out, nil
}
