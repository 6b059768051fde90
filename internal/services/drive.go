package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/JohnAbrahamV1983/MetadataEnhancer-sub000/internal/config"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Drive keys and values share a 124-byte budget per custom property.
const drivePropertyBudget = 124

// DriveStatus reports whether a Drive account is connected and who owns it.
type DriveStatus struct {
	Connected   bool   `json:"connected"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// DriveFolder is a folder entry as shown in the dashboard browser.
type DriveFolder struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
}

// DriveFile is a file entry within a folder, including any properties a
// previous export wrote back.
type DriveFile struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	MimeType   string            `json:"mimeType"`
	Size       int64             `json:"size"`
	Modified   time.Time         `json:"modified"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Drive is the surface the rest of the application needs from Google Drive.
type Drive interface {
	Status(ctx context.Context) (DriveStatus, error)
	ListFolders(ctx context.Context, parentID string) ([]DriveFolder, error)
	ListFiles(ctx context.Context, folderID string) ([]DriveFile, error)
	Download(ctx context.Context, fileID string) ([]byte, string, error)
	WriteProperties(ctx context.Context, fileID string, props map[string]string) error
}

type DriveService struct {
	srv              *drive.Service
	maxDownloadBytes int64
	logger           *zap.Logger
}

// NewDriveService builds a Drive client from a previously stored OAuth token.
// The interactive consent flow happens outside this server; we only refresh.
func NewDriveService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*DriveService, error) {
	tok, err := loadToken(cfg.GoogleTokenFile)
	if err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Scopes:       []string{drive.DriveScope},
		Endpoint:     google.Endpoint,
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &DriveService{
		srv:              srv,
		maxDownloadBytes: cfg.MaxDownloadBytes,
		logger:           logger,
	}, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no drive token at %s: connect a Google Drive account first", path)
		}
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("token file %s is empty", path)
		}
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return tok, nil
}

func (d *DriveService) Status(ctx context.Context) (DriveStatus, error) {
	about, err := d.srv.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return DriveStatus{}, fmt.Errorf("query drive account: %w", err)
	}

	status := DriveStatus{Connected: true}
	if about.User != nil {
		status.Email = about.User.EmailAddress
		status.DisplayName = about.User.DisplayName
	}
	return status, nil
}

// ListFolders returns the folders directly under parentID, or under the
// Drive root when parentID is empty.
func (d *DriveService) ListFolders(ctx context.Context, parentID string) ([]DriveFolder, error) {
	if parentID == "" {
		parentID = "root"
	}

	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", parentID, folderMimeType)

	var folders []DriveFolder
	err := d.srv.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, modifiedTime)").
		OrderBy("name").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				folders = append(folders, DriveFolder{
					ID:       f.Id,
					Name:     f.Name,
					Modified: parseDriveTime(f.ModifiedTime),
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list folders under %s: %w", parentID, err)
	}

	return folders, nil
}

// ListFiles returns the non-folder files directly inside folderID.
func (d *DriveService) ListFiles(ctx context.Context, folderID string) ([]DriveFile, error) {
	if folderID == "" {
		folderID = "root"
	}

	query := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", folderID, folderMimeType)

	var files []DriveFile
	err := d.srv.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime, properties)").
		OrderBy("name").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, DriveFile{
					ID:         f.Id,
					Name:       f.Name,
					MimeType:   f.MimeType,
					Size:       f.Size,
					Modified:   parseDriveTime(f.ModifiedTime),
					Properties: f.Properties,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list files in folder %s: %w", folderID, err)
	}

	return files, nil
}

// Download fetches the file bytes and MIME type for fileID. Files above the
// configured size cap are refused before any bytes move.
func (d *DriveService) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	meta, err := d.srv.Files.Get(fileID).Fields("mimeType, size, name").Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("get metadata for file %s: %w", fileID, err)
	}

	if d.maxDownloadBytes > 0 && meta.Size > d.maxDownloadBytes {
		return nil, "", fmt.Errorf("file %s is %d bytes, above the %d byte download limit", meta.Name, meta.Size, d.maxDownloadBytes)
	}

	resp, err := d.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, "", fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read content of file %s: %w", fileID, err)
	}

	d.logger.Debug("downloaded drive file",
		zap.String("fileId", fileID),
		zap.String("mimeType", meta.MimeType),
		zap.Int("bytes", len(content)))

	return content, meta.MimeType, nil
}

// WriteProperties writes key/value pairs back onto the Drive file as custom
// properties. Values are truncated to fit Drive's per-property byte budget;
// keys that alone exceed it are skipped.
func (d *DriveService) WriteProperties(ctx context.Context, fileID string, props map[string]string) error {
	if len(props) == 0 {
		return nil
	}

	clipped := ClipProperties(props)
	if len(clipped) == 0 {
		return fmt.Errorf("no properties left to write after clipping for file %s", fileID)
	}

	update := &drive.File{Properties: clipped}
	_, err := d.srv.Files.Update(fileID, update).Fields("id", "properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update properties of file %s: %w", fileID, err)
	}

	d.logger.Info("wrote drive properties",
		zap.String("fileId", fileID),
		zap.Int("count", len(clipped)))

	return nil
}

// ClipProperties enforces Drive's shared key+value byte budget per property.
func ClipProperties(props map[string]string) map[string]string {
	clipped := make(map[string]string, len(props))
	for key, value := range props {
		if key == "" || len(key) >= drivePropertyBudget {
			continue
		}
		room := drivePropertyBudget - len(key)
		if len(value) > room {
			value = truncateUTF8(value, room)
		}
		clipped[key] = value
	}
	return clipped
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

func parseDriveTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
