package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/ans-sync/internal/fetcher"
	"github.com/sells-group/ans-sync/internal/metrics"
)

const base = "https://portal.test/FTP/PDA/demonstracoes_contabeis/"

// fakePages serves canned listing pages keyed by URL.
type fakePages struct {
	pages map[string]string
	errs  map[string]error
	panic map[string]bool
	calls []string
}

func (f *fakePages) FetchPage(_ context.Context, url string, timeout time.Duration) (string, error) {
	f.calls = append(f.calls, url)
	if timeout <= 0 {
		return "", errors.New("missing timeout")
	}
	if f.panic[url] {
		panic("listing exploded")
	}
	if err := f.errs[url]; err != nil {
		return "", err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("404")
	}
	return page, nil
}

// fakeDownloader records downloads; URLs in fail return an error, URLs in boom panic.
type fakeDownloader struct {
	mu    sync.Mutex
	fail  map[string]bool
	boom  map[string]bool
	calls map[string]string
}

func (f *fakeDownloader) DownloadToFile(_ context.Context, url, path string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]string{}
	}
	f.calls[url] = path
	if f.boom[url] {
		panic("nil body")
	}
	if f.fail[url] {
		return 0, errors.New("timeout")
	}
	return 10, nil
}

func (f *fakeDownloader) called(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.calls[url]
	return ok
}

type fakeExtractor struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeExtractor) ExtractArchive(archivePath, destDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filepath.Base(archivePath)+"->"+destDir)
	if f.fail[filepath.Base(archivePath)] {
		return errors.New("corrupt archive")
	}
	return nil
}

type fakeFS struct {
	created []string
	fail    error
}

func (f *fakeFS) CreateDirectories(path string) error {
	if f.fail != nil {
		return f.fail
	}
	f.created = append(f.created, path)
	return nil
}

type harness struct {
	pages *fakePages
	dl    *fakeDownloader
	ex    *fakeExtractor
	fs    *fakeFS
	logs  *observer.ObservedLogs
	orch  *Orchestrator
}

func newHarness(pages map[string]string) *harness {
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		pages: &fakePages{pages: pages},
		dl:    &fakeDownloader{},
		ex:    &fakeExtractor{},
		fs:    &fakeFS{},
		logs:  logs,
	}
	h.orch = New(Deps{
		Pages:      h.pages,
		Links:      &fetcher.Multi{},
		Downloader: h.dl,
		Extractor:  h.ex,
		FS:         h.fs,
	}, zap.New(core))
	return h
}

func testConfig(years ...string) Config {
	root := "/data"
	return Config{
		BaseAccountingURL: base,
		OperatorsCSVURL:   "https://portal.test/operadoras/Relatorio_cadop.csv",
		Years:             years,
		Layout: Layout{
			Root:         root,
			Accounting:   root + "/accounting",
			Zips:         root + "/accounting/zips",
			CSVs:         root + "/accounting/csvs",
			Operators:    root + "/operators",
			OperatorsCSV: root + "/operators/operators.csv",
		},
	}
}

func listing(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><pre>")
	for _, n := range names {
		b.WriteString(`<a href="` + n + `">` + n + "</a>\n")
	}
	b.WriteString("</pre></body></html>")
	return b.String()
}

func TestRun_HappyPath(t *testing.T) {
	h := newHarness(map[string]string{
		base + "2022/": listing("1T2022.zip", "2T2022.zip"),
		base + "2023/": listing("1T2023.zip", "README.txt"),
	})

	sum, ok := h.orch.Run(context.Background(), testConfig("2022", "2023"))
	require.True(t, ok)

	assert.True(t, sum.RegistryDownloaded)
	assert.Equal(t, 3, sum.Discovered)
	assert.Equal(t, 3, sum.Downloaded)
	assert.Equal(t, 3, sum.Extracted)
	assert.Zero(t, sum.DownloadFailed)
	assert.Zero(t, sum.ExtractFailed)

	assert.Equal(t, []string{"/data", "/data/accounting", "/data/accounting/zips", "/data/accounting/csvs", "/data/operators"}, h.fs.created)
	assert.Equal(t, "/data/operators/operators.csv", h.dl.calls["https://portal.test/operadoras/Relatorio_cadop.csv"])
	assert.Equal(t, filepath.Join("/data/accounting/zips", "1T2023.zip"), h.dl.calls[base+"2023/1T2023.zip"])
	assert.Equal(t, []string{
		"1T2022.zip->/data/accounting/csvs",
		"2T2022.zip->/data/accounting/csvs",
		"1T2023.zip->/data/accounting/csvs",
	}, h.ex.calls)
}

func TestRun_RegistryFailureIsNotFatal(t *testing.T) {
	h := newHarness(map[string]string{base + "2023/": listing("1T2023.zip")})
	h.dl.fail = map[string]bool{"https://portal.test/operadoras/Relatorio_cadop.csv": true}

	sum, ok := h.orch.Run(context.Background(), testConfig("2023"))
	assert.True(t, ok)
	assert.False(t, sum.RegistryDownloaded)
	assert.Equal(t, 1, h.logs.FilterMessage("registry download failed, continuing with accounting statements").Len())
}

func TestRun_NoArchivesFails(t *testing.T) {
	h := newHarness(map[string]string{base + "2023/": listing("notes.pdf")})

	sum, ok := h.orch.Run(context.Background(), testConfig("2023"))
	assert.False(t, ok)
	assert.True(t, sum.RegistryDownloaded)
	assert.Zero(t, sum.Discovered)
	assert.Empty(t, h.ex.calls)
}

func TestRun_YearFailureContributesNothing(t *testing.T) {
	h := newHarness(map[string]string{base + "2023/": listing("1T2023.zip")})
	h.pages.errs = map[string]error{base + "2022/": errors.New("503")}
	h.pages.panic = map[string]bool{base + "2021/": true}

	sum, ok := h.orch.Run(context.Background(), testConfig("2021", "2022", "2023"))
	assert.True(t, ok)
	assert.Equal(t, 1, sum.Discovered)
	assert.Equal(t, []string{base + "2021/", base + "2022/", base + "2023/"}, h.pages.calls)
	assert.Equal(t, 2, h.logs.FilterMessage("year discovery failed").Len())
}

func TestRun_NonArchiveNameIsSkippedAndCounted(t *testing.T) {
	h := newHarness(nil)
	h.orch.deps.Links = linksFunc(func(string, string, string) ([]string, error) {
		return []string{base + "2023/1T2023.zip", base + "2023/download.zip?token=1", base + "2023/"}, nil
	})
	h.pages.pages = map[string]string{base + "2023/": "ignored"}

	sum, ok := h.orch.Run(context.Background(), testConfig("2023"))
	assert.True(t, ok)
	assert.Equal(t, 3, sum.Discovered)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.DownloadFailed)
	assert.Equal(t, 2, sum.Downloaded)
	assert.False(t, h.dl.called(base+"2023/"))
}

func TestRun_DownloadAndExtractFailuresAreIsolated(t *testing.T) {
	h := newHarness(map[string]string{base + "2023/": listing("1T2023.zip", "2T2023.zip", "3T2023.zip", "4T2023.zip")})
	h.dl.fail = map[string]bool{base + "2023/1T2023.zip": true}
	h.dl.boom = map[string]bool{base + "2023/2T2023.zip": true}
	h.ex.fail = map[string]bool{"3T2023.zip": true}

	rec := metrics.New("test")
	h.orch.deps.Metrics = rec

	sum, ok := h.orch.Run(context.Background(), testConfig("2023"))
	assert.True(t, ok)
	assert.Equal(t, 2, sum.DownloadFailed)
	assert.Equal(t, 2, sum.Downloaded)
	assert.Equal(t, 1, sum.ExtractFailed)
	assert.Equal(t, 1, sum.Extracted)
	assert.Equal(t, 1, h.logs.FilterMessage("archive processing panicked").Len())
}

func TestRun_AllExtractionsFail(t *testing.T) {
	h := newHarness(map[string]string{base + "2023/": listing("1T2023.zip")})
	h.ex.fail = map[string]bool{"1T2023.zip": true}

	assert.False(t, h.orch.Execute(context.Background(), testConfig("2023")))
}

func TestRun_DirectoryFailureAborts(t *testing.T) {
	h := newHarness(map[string]string{base + "2023/": listing("1T2023.zip")})
	h.fs.fail = errors.New("read-only file system")

	assert.False(t, h.orch.Execute(context.Background(), testConfig("2023")))
	assert.Empty(t, h.dl.calls)
}

func TestRun_ParallelWorkers(t *testing.T) {
	names := []string{"1T2022.zip", "2T2022.zip", "3T2022.zip", "4T2022.zip", "1T2023.zip"}
	h := newHarness(map[string]string{base + "2022/": listing(names...)})
	h.dl.fail = map[string]bool{base + "2022/2T2022.zip": true}

	cfg := testConfig("2022")
	cfg.Workers = 3
	sum, ok := h.orch.Run(context.Background(), cfg)
	require.True(t, ok)
	assert.Equal(t, 4, sum.Downloaded)
	assert.Equal(t, 1, sum.DownloadFailed)
	assert.Equal(t, 4, sum.Extracted)

	got := append([]string(nil), h.ex.calls...)
	sort.Strings(got)
	assert.Len(t, got, 4)
}

type linksFunc func(baseURL, page, ext string) ([]string, error)

func (f linksFunc) FindLinks(baseURL, page, ext string) ([]string, error) { return f(baseURL, page, ext) }

// mockDownloader is used where the assertion is about which calls were made.
type mockDownloader struct{ mock.Mock }

func (m *mockDownloader) DownloadToFile(ctx context.Context, url, path string, timeout time.Duration) (int64, error) {
	args := m.Called(ctx, url, path, timeout)
	return args.Get(0).(int64), args.Error(1)
}

func TestRun_NonZipNeverReachesDownloader(t *testing.T) {
	dl := &mockDownloader{}
	dl.On("DownloadToFile", mock.Anything, "https://portal.test/operadoras/Relatorio_cadop.csv", mock.Anything, 60*time.Second).
		Return(int64(1), nil)
	dl.On("DownloadToFile", mock.Anything, base+"2023/1T2023.zip", "/data/accounting/zips/1T2023.zip", 60*time.Second).
		Return(int64(1), nil)

	o := New(Deps{
		Pages:      &fakePages{pages: map[string]string{base + "2023/": "x"}},
		Links:      linksFunc(func(string, string, string) ([]string, error) { return []string{base + "2023/1T2023.zip", base + "2023/data.rar"}, nil }),
		Downloader: dl,
		Extractor:  &fakeExtractor{},
		FS:         &fakeFS{},
	}, nil)

	assert.True(t, o.Execute(context.Background(), testConfig("2023")))
	dl.AssertExpectations(t)
	dl.AssertNotCalled(t, "DownloadToFile", mock.Anything, base+"2023/data.rar", mock.Anything, mock.Anything)
	dl.AssertNumberOfCalls(t, "DownloadToFile", 2)
}

func TestYearURL(t *testing.T) {
	got, err := YearURL(base, "2023")
	require.NoError(t, err)
	assert.Equal(t, base+"2023/", got)

	got, err = YearURL("https://portal.test/pda", " 2022 ")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test/pda/2022/", got)

	got, err = YearURL("ftp://mirror.test/pda/", "2021")
	require.NoError(t, err)
	assert.Equal(t, "ftp://mirror.test/pda/2021/", got)

	_, err = YearURL(base, "")
	assert.Error(t, err)
	_, err = YearURL("http://[::1", "2023")
	assert.Error(t, err)
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "1T2023.zip", ArchiveName(base+"2023/1T2023.zip"))
	assert.Equal(t, "a.zip", ArchiveName("https://x/a.zip?sig=1#frag"))
	assert.Equal(t, "", ArchiveName("https://x/2023/"))
	assert.Equal(t, "b.zip", ArchiveName("no-scheme/b.zip"))
}
