package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type localStore struct {
	root    string
	secret  []byte
	baseURL string
	clock   clock.Clock
	log     *zap.Logger
}

type Params struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
	Log    *zap.Logger
}

func NewLocal(p Params) (Service, error) {
	if err := os.MkdirAll(p.Config.StorageRoot, 0o755); err != nil {
		return nil, errkind.Wrap(errkind.Unknown, "storage: create root", err)
	}

	secret := []byte(p.Config.StorageSecret)
	if len(secret) == 0 {
		// Unsigned URLs would be openly guessable, so generate an
		// ephemeral secret when none is configured. URLs stop verifying
		// after a restart.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, errkind.Wrap(errkind.Unknown, "storage: generate secret", err)
		}
	}

	return &localStore{
		root:    p.Config.StorageRoot,
		secret:  secret,
		baseURL: strings.TrimRight(p.Config.StorageBaseURL, "/"),
		clock:   p.Clock,
		log:     p.Log.Named("storage.local"),
	}, nil
}

func (s *localStore) Upload(ctx context.Context, r io.Reader, filename, contentType, folder string) (Object, error) {
	if r == nil {
		return Object{}, errkind.New(errkind.InvalidArgument, "storage: reader is required")
	}

	base := slug.Make(strings.TrimSuffix(filename, path.Ext(filename)))
	if base == "" {
		base = "file"
	}
	key := path.Join(sanitizeFolder(folder), fmt.Sprintf("%s-%s%s", base, uuid.NewString(), strings.ToLower(path.Ext(filename))))

	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, errkind.Wrap(errkind.Unknown, "storage: create folder", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return Object{}, errkind.Wrap(errkind.Unknown, "storage: create file", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(dest)
		return Object{}, errkind.Wrap(errkind.Unknown, "storage: write file", err)
	}

	s.log.Debug("stored object", zap.String("key", key), zap.Int64("size", size))
	return Object{
		Key:         key,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  s.clock.Now().UTC(),
	}, nil
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.Newf(errkind.NotFound, "storage: object %s not found", clean)
		}
		return nil, errkind.Wrap(errkind.Unknown, "storage: open file", err)
	}
	return f, nil
}

func (s *localStore) GenerateSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	expires := strconv.FormatInt(s.clock.Now().Add(expiry).Unix(), 10)
	sig := s.sign(clean, expires)

	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", sig)
	return fmt.Sprintf("%s/%s?%s", s.baseURL, clean, q.Encode()), nil
}

func (s *localStore) VerifySignedURL(key, expires, signature string) error {
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}

	ts, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return errkind.New(errkind.InvalidArgument, "storage: invalid expiry")
	}
	if s.clock.Now().Unix() > ts {
		return errkind.New(errkind.InvalidArgument, "storage: url has expired")
	}

	expected := s.sign(clean, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errkind.New(errkind.Unauthorized, "storage: signature mismatch")
	}
	return nil
}

func (s *localStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte("\n"))
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}

func sanitizeFolder(folder string) string {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" || folder == "." {
		return "misc"
	}
	return folder
}

func cleanKey(key string) (string, error) {
	clean := strings.Trim(path.Clean("/"+key), "/")
	if clean == "" || clean == "." || strings.Contains(clean, "..") {
		return "", errkind.New(errkind.InvalidArgument, "storage: invalid object key")
	}
	return clean, nil
}
