package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ldmsys/ldm/pkg/repository"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
)

// applyCmd bulk-creates a platform/project/folder/file/rows tree from a
// YAML manifest in one pass, generalizing warren's apply.go from
// services/secrets/volumes to the hierarchy. Like the tm/trash
// maintenance commands it opens the data directory directly rather than
// going through the API, so run it against a directory ldmd is not
// currently serving.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Bulk-create a hierarchy tree from a YAML manifest",
	Long: `apply reads a YAML manifest describing a platform (optional),
project, folders and files (with rows) and creates everything that does
not already exist by name, in manifest order.

Example:
  ldmd apply -f import.yaml --data-dir ./data`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	applyCmd.Flags().String("data-dir", "./data", "Data directory (as passed to 'serve')")
	applyCmd.Flags().String("principal", "apply-cli", "User ID recorded against created rows/audit entries")
	_ = applyCmd.MarkFlagRequired("file")
}

// manifestFile is one file entry: either literal rows, or an empty body
// if the caller just wants the file record created.
type manifestFile struct {
	Name   string        `yaml:"name"`
	Format string        `yaml:"format"`
	Rows   []manifestRow `yaml:"rows,omitempty"`
}

type manifestRow struct {
	StringID string            `yaml:"string_id,omitempty"`
	Source   string            `yaml:"source"`
	Target   string            `yaml:"target,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

type manifestFolder struct {
	Name    string           `yaml:"name"`
	Files   []manifestFile   `yaml:"files,omitempty"`
	Folders []manifestFolder `yaml:"folders,omitempty"`
}

// manifest mirrors warren's apiVersion/kind envelope loosely: Kind is
// always "Hierarchy" today, kept so future manifest kinds (e.g. "TM")
// can be added without breaking existing files.
type manifest struct {
	Kind     string           `yaml:"kind"`
	Platform string           `yaml:"platform,omitempty"`
	Project  string           `yaml:"project"`
	Folders  []manifestFolder `yaml:"folders,omitempty"`
	Files    []manifestFile   `yaml:"files,omitempty"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	principal, _ := cmd.Flags().GetString("principal")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if m.Kind != "" && m.Kind != "Hierarchy" {
		return fmt.Errorf("unsupported manifest kind %q", m.Kind)
	}
	if m.Project == "" {
		return fmt.Errorf("manifest.project is required")
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	backend := repository.NewLocalBackend(store)
	repo := repository.New(backend, 0)

	var platformID string
	if m.Platform != "" {
		p, err := findOrCreatePlatform(repo, m.Platform, principal)
		if err != nil {
			return err
		}
		platformID = p.ID
	}

	project, err := findOrCreateProject(repo, m.Project, platformID, principal)
	if err != nil {
		return err
	}
	fmt.Printf("project: %s (%s)\n", project.Name, project.ID)

	if err := applyFolders(repo, m.Folders, project.ID, "", principal); err != nil {
		return err
	}
	return applyFiles(repo, m.Files, project.ID, "", principal)
}

func findOrCreatePlatform(repo *repository.Repository, name, principal string) (*types.Platform, error) {
	platforms, err := repo.Backend().ListPlatforms()
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	for _, p := range platforms {
		if p.Name == name {
			return p, nil
		}
	}
	p, err := repo.CreatePlatform(name, "", false, principal)
	if err != nil {
		return nil, fmt.Errorf("create platform %s: %w", name, err)
	}
	fmt.Printf("created platform: %s\n", name)
	return p, nil
}

func findOrCreateProject(repo *repository.Repository, name, platformID, principal string) (*types.Project, error) {
	projects, err := repo.Backend().ListProjects()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		if p.Name == name && p.PlatformID == platformID {
			return p, nil
		}
	}
	p, err := repo.CreateProject(name, platformID, false, principal)
	if err != nil {
		return nil, fmt.Errorf("create project %s: %w", name, err)
	}
	fmt.Printf("created project: %s\n", name)
	return p, nil
}

func applyFolders(repo *repository.Repository, folders []manifestFolder, projectID, parentFolderID, principal string) error {
	for _, mf := range folders {
		folder, err := findOrCreateFolder(repo, mf.Name, projectID, parentFolderID, principal)
		if err != nil {
			return err
		}
		if err := applyFiles(repo, mf.Files, projectID, folder.ID, principal); err != nil {
			return err
		}
		if err := applyFolders(repo, mf.Folders, projectID, folder.ID, principal); err != nil {
			return err
		}
	}
	return nil
}

func findOrCreateFolder(repo *repository.Repository, name, projectID, parentFolderID, principal string) (*types.Folder, error) {
	var siblings []*types.Folder
	var err error
	if parentFolderID == "" {
		siblings, err = repo.Backend().ListFoldersByProject(projectID)
	} else {
		siblings, err = repo.Backend().ListFoldersByParent(parentFolderID)
	}
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	for _, f := range siblings {
		if f.Name == name && f.ParentFolderID == parentFolderID {
			return f, nil
		}
	}
	f, err := repo.CreateFolder(name, projectID, parentFolderID, principal)
	if err != nil {
		return nil, fmt.Errorf("create folder %s: %w", name, err)
	}
	fmt.Printf("created folder: %s\n", name)
	return f, nil
}

func applyFiles(repo *repository.Repository, files []manifestFile, projectID, folderID, principal string) error {
	for _, mf := range files {
		format := types.FileFormat(mf.Format)
		if format == "" {
			format = types.FileFormatTXT
		}
		f, err := repo.CreateFile(mf.Name, projectID, folderID, format, principal)
		if err != nil {
			return fmt.Errorf("create file %s: %w", mf.Name, err)
		}
		fmt.Printf("created file: %s (%d rows)\n", mf.Name, len(mf.Rows))
		if len(mf.Rows) == 0 {
			continue
		}
		rows := make([]*types.Row, len(mf.Rows))
		for i, mr := range mf.Rows {
			status := types.RowStatusPending
			if mr.Target != "" {
				status = types.RowStatusTranslated
			}
			rows[i] = &types.Row{
				ID:       fmt.Sprintf("%s-row-%d", f.ID, i),
				FileID:   f.ID,
				Index:    i,
				Source:   mr.Source,
				Target:   mr.Target,
				StringID: mr.StringID,
				Metadata: mr.Metadata,
				Status:   status,
			}
		}
		if err := repo.BulkUpsertRows(rows, principal); err != nil {
			return fmt.Errorf("upsert rows for %s: %w", mf.Name, err)
		}
	}
	return nil
}
