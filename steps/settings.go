package steps

import (
	"context"
	"net/http"
	"net/url"
	"path"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/httpclient"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/vault"
)

// RegisterSettings registers the .obsidian settings steps.
func RegisterSettings(reg *step.Registry, deps *Deps) error {
	return register(reg, map[string]step.Func{
		"obsidian_backup":              deps.backup,
		"obsidian_list_plugins":        deps.listPlugins,
		"obsidian_enable_plugin":       deps.togglePlugin("obsidian_enable_plugin", "enabled ", (*vault.Vault).EnablePlugin),
		"obsidian_disable_plugin":      deps.togglePlugin("obsidian_disable_plugin", "disabled ", (*vault.Vault).DisablePlugin),
		"obsidian_enable_core_plugin":  deps.togglePlugin("obsidian_enable_core_plugin", "enabled core ", (*vault.Vault).EnableCorePlugin),
		"obsidian_disable_core_plugin": deps.togglePlugin("obsidian_disable_core_plugin", "disabled core ", (*vault.Vault).DisableCorePlugin),
		"obsidian_install_plugin_zip":  deps.installPluginZip,
		"obsidian_install_plugin_url":  deps.installPluginURL,
		"obsidian_set_theme":           deps.setTheme,
		"obsidian_enable_snippet":      deps.enableSnippet,
		"obsidian_disable_snippet":     deps.disableSnippet,
		"obsidian_write_snippet":       deps.writeSnippet,
		"obsidian_set_setting":         deps.setSetting,
	})
}

func (d *Deps) togglePlugin(name, verb string, op func(*vault.Vault, string) error) step.Func {
	return func(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
		v, err := d.needVault(name)
		if err != nil {
			return nil, err
		}
		id, err := params.RequireString(name, "id")
		if err != nil {
			return nil, err
		}
		if err := op(v, id); err != nil {
			return nil, err
		}
		return step.Context{"obsidian_action": verb + id}, nil
	}
}

func (d *Deps) backup(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_backup")
	if err != nil {
		return nil, err
	}
	dir, err := v.BackupSettings(params.String("out_dir", ""))
	if err != nil {
		return nil, err
	}
	return step.Context{"obsidian_backup_dir": dir}, nil
}

func (d *Deps) listPlugins(_ context.Context, _ step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_list_plugins")
	if err != nil {
		return nil, err
	}
	plugins, err := v.ListPlugins()
	if err != nil {
		return nil, err
	}
	installed := make([]map[string]any, len(plugins.Installed))
	for i, p := range plugins.Installed {
		installed[i] = map[string]any{"id": p.ID, "dir": p.Dir, "name": p.Name, "version": p.Version, "author": p.Author}
	}
	return step.Context{"obsidian_plugins": map[string]any{
		"core":      plugins.Core,
		"community": plugins.Community,
		"installed": installed,
	}}, nil
}

// installPluginZip installs an archive from a file path inside the vault.
func (d *Deps) installPluginZip(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_install_plugin_zip")
	if err != nil {
		return nil, err
	}
	zipPath, err := params.RequireString("obsidian_install_plugin_zip", "zip")
	if err != nil {
		return nil, err
	}
	data, err := readFile(v, zipPath)
	if err != nil {
		return nil, err
	}
	id, err := v.InstallPluginZip(data, params.String("dir", ""), stem(zipPath))
	if err != nil {
		return nil, err
	}
	return step.Context{"obsidian_plugin_installed": id}, nil
}

// installPluginURL downloads an archive and installs it.
func (d *Deps) installPluginURL(ctx context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_install_plugin_url")
	if err != nil {
		return nil, err
	}
	if d.HTTP == nil {
		return nil, apperrors.Configuration("obsidian_install_plugin_url", "http client is not configured")
	}
	raw, err := params.RequireString("obsidian_install_plugin_url", "url")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperrors.InvalidInput("url", "absolute http(s) URL required")
	}
	resp, err := d.HTTP.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: raw})
	if err != nil {
		return nil, httpclient.ToAppError("plugin download", err)
	}
	id, err := v.InstallPluginZip(resp.Body, params.String("dir", ""), stem(path.Base(u.Path)))
	if err != nil {
		return nil, err
	}
	return step.Context{"obsidian_plugin_installed": id}, nil
}

func (d *Deps) setTheme(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_set_theme")
	if err != nil {
		return nil, err
	}
	name, err := params.RequireString("obsidian_set_theme", "name")
	if err != nil {
		return nil, err
	}
	if err := v.SetTheme(name); err != nil {
		return nil, err
	}
	return step.Context{"obsidian_theme": name}, nil
}

func (d *Deps) enableSnippet(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_enable_snippet")
	if err != nil {
		return nil, err
	}
	name, err := params.RequireString("obsidian_enable_snippet", "name")
	if err != nil {
		return nil, err
	}
	if err := v.EnableSnippet(name); err != nil {
		return nil, err
	}
	return step.Context{"obsidian_snippet_enabled": name}, nil
}

func (d *Deps) disableSnippet(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_disable_snippet")
	if err != nil {
		return nil, err
	}
	name, err := params.RequireString("obsidian_disable_snippet", "name")
	if err != nil {
		return nil, err
	}
	if err := v.DisableSnippet(name); err != nil {
		return nil, err
	}
	return step.Context{"obsidian_snippet_disabled": name}, nil
}

// writeSnippet stores CSS as a snippet and optionally enables it.
func (d *Deps) writeSnippet(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_write_snippet")
	if err != nil {
		return nil, err
	}
	name, err := params.RequireString("obsidian_write_snippet", "name")
	if err != nil {
		return nil, err
	}
	p, err := v.WriteSnippet(name, params.String("content", ""))
	if err != nil {
		return nil, err
	}
	if params.Bool("enable", false) {
		if err := v.EnableSnippet(name); err != nil {
			return nil, err
		}
	}
	return step.Context{"obsidian_snippet_path": p}, nil
}

func (d *Deps) setSetting(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	v, err := d.needVault("obsidian_set_setting")
	if err != nil {
		return nil, err
	}
	file := params.String("file", "app.json")
	keyPath, err := params.RequireString("obsidian_set_setting", "path")
	if err != nil {
		return nil, err
	}
	if err := v.SetSetting(file, keyPath, params["value"]); err != nil {
		return nil, err
	}
	return step.Context{"obsidian_setting_updated": map[string]any{"file": file, "path": keyPath}}, nil
}
