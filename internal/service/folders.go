package service

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/store"
)

// FolderNode is one folder of the tree listing.
type FolderNode struct {
	*store.Folder
	Children []*FolderNode `json:"children,omitempty"`
}

// CreateFolder adds a folder under parentID ("" for the root).
func (s *Service) CreateFolder(ctx context.Context, p auth.Principal, name, parentID string) (*store.Folder, error) {
	f := &store.Folder{
		ID:       uuid.New().String(),
		TenantID: p.TenantID,
		ParentID: parentID,
		Name:     strings.TrimSpace(name),
	}
	if err := s.deps.Store.CreateFolder(ctx, f); err != nil {
		return nil, err
	}
	s.record(ctx, p, "", store.ActivityFolderCreated, map[string]any{"folder_id": f.ID, "name": f.Name})
	return f, nil
}

// ListFolders returns the tenant's folders flat, ordered as stored.
func (s *Service) ListFolders(ctx context.Context, p auth.Principal) ([]*store.Folder, error) {
	return s.deps.Store.ListFolders(ctx, p.TenantID)
}

// FolderTree returns the tenant's folders as a forest of root folders,
// siblings ordered by name.
func (s *Service) FolderTree(ctx context.Context, p auth.Principal) ([]*FolderNode, error) {
	folders, err := s.deps.Store.ListFolders(ctx, p.TenantID)
	if err != nil {
		return nil, err
	}
	return buildTree(folders), nil
}

func buildTree(folders []*store.Folder) []*FolderNode {
	nodes := make(map[string]*FolderNode, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &FolderNode{Folder: f}
	}

	var roots []*FolderNode
	for _, f := range folders {
		n := nodes[f.ID]
		if parent, ok := nodes[f.ParentID]; ok && f.ParentID != "" {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}

	var sortLevel func([]*FolderNode)
	sortLevel = func(level []*FolderNode) {
		sort.SliceStable(level, func(i, j int) bool {
			return strings.ToLower(level[i].Name) < strings.ToLower(level[j].Name)
		})
		for _, n := range level {
			sortLevel(n.Children)
		}
	}
	sortLevel(roots)
	return roots
}

// UpdateFolder renames and/or moves a folder.
func (s *Service) UpdateFolder(ctx context.Context, p auth.Principal, id string, update store.FolderUpdate) (*store.Folder, error) {
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
	}
	if err := s.deps.Store.UpdateFolder(ctx, p.TenantID, id, update); err != nil {
		return nil, err
	}
	f, err := s.deps.Store.GetFolder(ctx, p.TenantID, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, "", store.ActivityFolderUpdated, map[string]any{
		"folder_id": f.ID,
		"name":      f.Name,
		"parent_id": f.ParentID,
	})
	return f, nil
}

// DeleteFolder removes an empty folder.
func (s *Service) DeleteFolder(ctx context.Context, p auth.Principal, id string) error {
	if err := s.deps.Store.DeleteFolder(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.record(ctx, p, "", store.ActivityFolderDeleted, map[string]any{"folder_id": id})
	return nil
}
