package orchestrators

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapters "github.com/ochairo/redist/internal/domain-adapters/gateways"
	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/services"
	"github.com/ochairo/redist/internal/external-adapters/gpg"
	"github.com/ochairo/redist/internal/external-adapters/manifest"
)

type request struct {
	method      string
	uri         string
	contentType string
	auth        string
	size        int
}

// fakeHost serves upstream archives, accepts uploads and drafts releases
type fakeHost struct {
	mu       sync.Mutex
	requests []request
	archives map[string][]byte
}

func (h *fakeHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.requests = append(h.requests, request{
		method:      r.Method,
		uri:         r.URL.RequestURI(),
		contentType: r.Header.Get("Content-Type"),
		auth:        r.Header.Get("Authorization"),
		size:        len(body),
	})
	h.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/dist/"):
		data, ok := h.archives[strings.TrimPrefix(r.URL.Path, "/dist/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	case r.Method == http.MethodPost && r.URL.Path == "/api/releases":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42,"tag_name":"v8.10-1.0","created_at":"2024-09-01T10:00:00Z"}`))
	case r.Method == http.MethodPut:
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (h *fakeHost) filter(method string) []request {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []request
	for _, r := range h.requests {
		if r.method == method {
			out = append(out, r)
		}
	}
	return out
}

func upstreamZip(t *testing.T, flavor string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"gradle-8.10/bin/gradle", "gradle-8.10/lib/" + flavor + ".jar", "gradle-8.10/LICENSE"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newFakeHost(t *testing.T) (*fakeHost, *httptest.Server) {
	t.Helper()
	host := &fakeHost{archives: map[string][]byte{
		"gradle-8.10-bin.zip": upstreamZip(t, "bin"),
		"gradle-8.10-all.zip": upstreamZip(t, "all"),
	}}
	srv := httptest.NewServer(host)
	t.Cleanup(srv.Close)
	return host, srv
}

func testDistribution(t *testing.T, srv *httptest.Server) *entities.Distribution {
	t.Helper()
	dir := t.TempDir()

	extras := filepath.Join(dir, "init.d")
	require.NoError(t, os.MkdirAll(extras, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(extras, "repositories.gradle"), []byte("allprojects {}"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(extras, "mirror.gradle"), []byte("// mirror"), 0600))

	return &entities.Distribution{
		Product:  "Gradle",
		Tool:     "gradle",
		BaseName: "sslabs-gradle",
		Version:  entities.VersionSpec{Upstream: "8.10", Revision: "1.0"},
		Upstream: entities.UpstreamSource{
			URLTemplate: srv.URL + "/dist/{name}-{version}-{flavor}.zip",
		},
		ExtrasDir: extras,
		Flavors:   entities.AllFlavors,
		WorkDir:   filepath.Join(dir, "build"),
		Publish: entities.PublishTarget{
			Mode:       entities.PublishDirect,
			BaseURL:    srv.URL + "/upload",
			Credential: entities.CredentialRef{Kind: entities.CredentialBearer, Variable: "REDIST_TOKEN"},
		},
	}
}

func newTestOrchestrator(t *testing.T, dist *entities.Distribution, env map[string]string) *ReleaseOrchestrator {
	t.Helper()
	ws, err := adapters.NewWorkspace(dist.WorkDir)
	require.NoError(t, err)

	transfer := adapters.NewHTTPClient(nil)
	return NewReleaseOrchestrator(ReleaseDependencies{
		Workspace: ws,
		Fetcher:   adapters.NewDownloader(transfer, nil),
		Packager:  adapters.NewPackager(nil),
		Digester:  adapters.NewDigestCalculator(),
		Drafter:   adapters.NewReleaseDrafter(transfer, nil),
		Publisher: adapters.NewPublisher(transfer, nil),
		Manifests: manifest.NewStore(ws.Root()),
		Resolver: services.NewCredentialResolver(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}),
	}, ReleaseOrchestratorConfig{Workers: 4})
}

var testEnv = map[string]string{"REDIST_TOKEN": "tok"}

func TestReleaseOrchestrator_Direct(t *testing.T) {
	host, srv := newFakeHost(t)
	dist := testDistribution(t, srv)

	report, err := newTestOrchestrator(t, dist, testEnv).Run(context.Background(), dist)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())

	puts := host.filter(http.MethodPut)
	require.Len(t, puts, 4, "package and digest for each flavor")
	types := make(map[string]string)
	for _, p := range puts {
		types[p.uri] = p.contentType
		assert.Equal(t, "Bearer tok", p.auth)
		assert.NotZero(t, p.size)
	}
	assert.Equal(t, map[string]string{
		"/upload/sslabs-gradle-8.10-1.0-bin.zip":        "application/zip",
		"/upload/sslabs-gradle-8.10-1.0-bin.zip.sha256": "text/plain",
		"/upload/sslabs-gradle-8.10-1.0-all.zip":        "application/zip",
		"/upload/sslabs-gradle-8.10-1.0-all.zip.sha256": "text/plain",
	}, types)

	pkg, _ := report.Result(PackageStage(entities.FlavorMinimal))
	r, err := zip.OpenReader(pkg.Artifact.Path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"gradle-8.10/bin/gradle",
		"gradle-8.10/lib/bin.jar",
		"gradle-8.10/LICENSE",
		"gradle-8.10/init.d/mirror.gradle",
		"gradle-8.10/init.d/repositories.gradle",
	}, names)

	sum, err := adapters.NewDigestCalculator().Calculate(pkg.Artifact.Path)
	require.NoError(t, err)
	written, err := os.ReadFile(services.DigestPath(pkg.Artifact.Path))
	require.NoError(t, err)
	assert.Equal(t, sum, string(written))

	aggregate, _ := report.Result(StagePublish)
	assert.Len(t, aggregate.Artifact.Locations, 4)
}

func TestReleaseOrchestrator_SecondRunUsesCache(t *testing.T) {
	host, srv := newFakeHost(t)
	dist := testDistribution(t, srv)
	orch := newTestOrchestrator(t, dist, testEnv)

	_, err := orch.Run(context.Background(), dist)
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), dist)
	require.NoError(t, err)

	for _, f := range dist.Flavors {
		fetch, _ := report.Result(FetchStage(f))
		pkg, _ := report.Result(PackageStage(f))
		checksum, _ := report.Result(ChecksumStage(f))
		assert.False(t, fetch.Cached)
		assert.True(t, pkg.Cached)
		assert.True(t, checksum.Cached)
	}
	assert.Len(t, host.filter(http.MethodGet), 4)
	assert.Len(t, host.filter(http.MethodPut), 8)
}

func TestReleaseOrchestrator_ExtrasChangeRebuildsPackage(t *testing.T) {
	host, srv := newFakeHost(t)
	dist := testDistribution(t, srv)
	orch := newTestOrchestrator(t, dist, testEnv)
	mirror := filepath.Join(dist.ExtrasDir, "mirror.gradle")

	_, err := orch.Run(context.Background(), dist)
	require.NoError(t, err)

	// mode only
	require.NoError(t, os.Chmod(mirror, 0700))
	report, err := orch.Run(context.Background(), dist)
	require.NoError(t, err)
	for _, f := range dist.Flavors {
		pkg, _ := report.Result(PackageStage(f))
		checksum, _ := report.Result(ChecksumStage(f))
		assert.False(t, pkg.Cached, f.Classifier())
		assert.False(t, checksum.Cached, f.Classifier())
	}
	pkg, _ := report.Result(PackageStage(entities.FlavorMinimal))
	assert.Equal(t, os.FileMode(0755), entryMode(t, pkg.Artifact.Path, "gradle-8.10/init.d/mirror.gradle"))
	assert.Equal(t, os.FileMode(0644), entryMode(t, pkg.Artifact.Path, "gradle-8.10/init.d/repositories.gradle"))

	// unchanged inputs hit the cache again
	report, err = orch.Run(context.Background(), dist)
	require.NoError(t, err)
	pkg, _ = report.Result(PackageStage(entities.FlavorMinimal))
	assert.True(t, pkg.Cached)
	before, err := os.ReadFile(services.DigestPath(pkg.Artifact.Path))
	require.NoError(t, err)

	// content only
	require.NoError(t, os.WriteFile(mirror, []byte("// mirror v2"), 0700))
	report, err = orch.Run(context.Background(), dist)
	require.NoError(t, err)
	pkg, _ = report.Result(PackageStage(entities.FlavorMinimal))
	assert.False(t, pkg.Cached)
	after, err := os.ReadFile(services.DigestPath(pkg.Artifact.Path))
	require.NoError(t, err)
	assert.NotEqual(t, string(before), string(after))

	// publishing is never cached
	assert.Len(t, host.filter(http.MethodPut), 16)
}

func entryMode(t *testing.T, archive, name string) os.FileMode {
	t.Helper()
	r, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer r.Close()
	for _, f := range r.File {
		if f.Name == name {
			return f.Mode().Perm()
		}
	}
	t.Fatalf("%s has no entry %s", archive, name)
	return 0
}

func TestReleaseOrchestrator_Release(t *testing.T) {
	host, srv := newFakeHost(t)
	dist := testDistribution(t, srv)
	dist.Publish = entities.PublishTarget{
		Mode:       entities.PublishRelease,
		APIURL:     srv.URL + "/api",
		UploadURL:  srv.URL + "/uploads",
		Credential: entities.CredentialRef{Kind: entities.CredentialBearer, Variable: "REDIST_TOKEN"},
	}

	report, err := newTestOrchestrator(t, dist, testEnv).Run(context.Background(), dist)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())

	assert.Len(t, host.filter(http.MethodPost), 1, "one shared draft")

	var uris []string
	for _, p := range host.filter(http.MethodPut) {
		uris = append(uris, p.uri)
	}
	assert.ElementsMatch(t, []string{
		"/uploads/releases/42/assets?name=sslabs-gradle-8.10-1.0-bin.zip",
		"/uploads/releases/42/assets?name=sslabs-gradle-8.10-1.0-bin.zip.sha256",
		"/uploads/releases/42/assets?name=sslabs-gradle-8.10-1.0-all.zip",
		"/uploads/releases/42/assets?name=sslabs-gradle-8.10-1.0-all.zip.sha256",
	}, uris)

	assert.FileExists(t, filepath.Join(dist.WorkDir, services.ReleaseRecordPath()))
}

func TestReleaseOrchestrator_SignWithUnencryptedKey(t *testing.T) {
	host, srv := newFakeHost(t)
	dist := testDistribution(t, srv)
	dist.Flavors = []entities.Flavor{entities.FlavorMinimal}

	cfg := &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA}
	entity, err := openpgp.NewEntity("Release Bot", "test", "release@example.test", cfg)
	require.NoError(t, err)
	var key bytes.Buffer
	w, err := armor.Encode(&key, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, cfg))
	require.NoError(t, w.Close())
	dist.Signing.KeyFile = filepath.Join(t.TempDir(), "release.asc")
	require.NoError(t, os.WriteFile(dist.Signing.KeyFile, key.Bytes(), 0600))

	orch := newTestOrchestrator(t, dist, testEnv)
	orch.deps.Signer = gpg.NewSigner(nil)

	p, err := orch.BuildPipeline(dist)
	require.NoError(t, err)
	sign, ok := p.Stage(SignStage(entities.FlavorMinimal))
	require.True(t, ok)
	assert.Empty(t, sign.Credentials)

	report, err := orch.Run(context.Background(), dist)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())

	var uris []string
	for _, put := range host.filter(http.MethodPut) {
		uris = append(uris, put.uri)
	}
	assert.ElementsMatch(t, []string{
		"/upload/sslabs-gradle-8.10-1.0-bin.zip",
		"/upload/sslabs-gradle-8.10-1.0-bin.zip.sha256",
		"/upload/sslabs-gradle-8.10-1.0-bin.zip.asc",
	}, uris)

	result, _ := report.Result(SignStage(entities.FlavorMinimal))
	sig, err := os.ReadFile(result.Artifact.Path)
	require.NoError(t, err)
	pkg, _ := report.Result(PackageStage(entities.FlavorMinimal))
	archive, err := os.Open(pkg.Artifact.Path)
	require.NoError(t, err)
	defer archive.Close()
	_, err = openpgp.CheckArmoredDetachedSignature(openpgp.EntityList{entity}, archive, bytes.NewReader(sig), nil)
	assert.NoError(t, err)
}

func TestReleaseOrchestrator_FetchFailureStopsFlavor(t *testing.T) {
	host, srv := newFakeHost(t)
	delete(host.archives, "gradle-8.10-bin.zip")
	dist := testDistribution(t, srv)

	report, err := newTestOrchestrator(t, dist, testEnv).Run(context.Background(), dist)
	require.Error(t, err)
	require.NotNil(t, report)

	fetch, _ := report.Result(FetchStage(entities.FlavorMinimal))
	se, ok := adapters.AsStatusError(fetch.Err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	for _, name := range []string{
		PackageStage(entities.FlavorMinimal),
		ChecksumStage(entities.FlavorMinimal),
		PublishStage(entities.FlavorMinimal),
		StagePublish,
	} {
		result, _ := report.Result(name)
		assert.Equal(t, "skipped", result.Status(), name)
	}
	full, _ := report.Result(PublishStage(entities.FlavorFull))
	assert.Equal(t, StateSucceeded, full.State)

	for _, p := range host.filter(http.MethodPut) {
		assert.NotContains(t, p.uri, "-bin.zip")
	}
	assert.NoFileExists(t, filepath.Join(dist.WorkDir, services.PackagePath(dist, entities.FlavorMinimal)))
}

func TestReleaseOrchestrator_MissingCredential(t *testing.T) {
	host, srv := newFakeHost(t)
	dist := testDistribution(t, srv)

	_, err := newTestOrchestrator(t, dist, nil).Run(context.Background(), dist)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrConfiguration))
	assert.Contains(t, err.Error(), "REDIST_TOKEN")

	host.mu.Lock()
	defer host.mu.Unlock()
	assert.Empty(t, host.requests)
}

func TestReleaseOrchestrator_Targets(t *testing.T) {
	host, srv := newFakeHost(t)
	dist := testDistribution(t, srv)

	// the publish credential is not needed to build a checksum
	report, err := newTestOrchestrator(t, dist, nil).Run(context.Background(), dist, ChecksumStage(entities.FlavorFull))
	require.NoError(t, err)
	assert.Len(t, report.Stages, 3)
	assert.Empty(t, host.filter(http.MethodPut))

	_, err = newTestOrchestrator(t, dist, nil).Run(context.Background(), dist, "deploy")
	assert.True(t, errors.Is(err, ErrUnknownStage))
}

func TestReleaseOrchestrator_BuildPipeline(t *testing.T) {
	_, srv := newFakeHost(t)
	dist := testDistribution(t, srv)
	dist.Publish.Mode = entities.PublishRelease
	dist.Signing = entities.SigningConfig{KeyFile: "key.asc", PassphraseVariable: "GPG_PASSPHRASE"}

	p, err := newTestOrchestrator(t, dist, nil).BuildPipeline(dist)
	require.NoError(t, err)
	assert.Equal(t, 12, p.Len())

	deps, err := p.Dependencies()
	require.NoError(t, err)
	assert.Empty(t, deps[StageDraftRelease])
	assert.Equal(t, []string{StageDraftRelease, "package-bin", "checksum-bin", "sign-bin"}, deps["publish-bin"])
	assert.Equal(t, []string{"publish-bin", "publish-all"}, deps[StagePublish])

	order, err := p.Order()
	require.NoError(t, err)
	position := make(map[string]int)
	for i, name := range order {
		position[name] = i
	}
	for name, list := range deps {
		for _, dep := range list {
			assert.Less(t, position[dep], position[name], "%s before %s", dep, name)
		}
	}
}
