package storage

import (
	"context"
	"fmt"

	"storyreel/internal/adapters/storage/gdrive"
	"storyreel/internal/adapters/storage/localfs"
	"storyreel/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

func NewProvider(cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("storage: STORAGE_LOCAL_ROOT is required for localfs")
		}
		return localfs.New(cfg.LocalRoot), nil

	case "gdrive":
		return newGDriveProvider(cfg)

	default:
		return nil, fmt.Errorf("storage: unknown provider: %s", cfg.Provider)
	}
}

func newGDriveProvider(cfg config.StorageConfig) (Provider, error) {
	ctx := context.Background()

	if cfg.GDriveClientID == "" || cfg.GDriveSecret == "" || cfg.GDriveRefreshTok == "" {
		return nil, fmt.Errorf("storage: gdrive requires client id, secret and refresh token")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.GDriveRefreshTok}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}
