package locator_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/mono2repo/internal/locator"
)

var (
	testRepositoryRootPath = filepath.Join(string(filepath.Separator), "src", "mono")
	testWidgetPath         = filepath.Join(testRepositoryRootPath, "tools", "widget")
	testOutsidePath        = filepath.Join(string(filepath.Separator), "scratch", "loose")
)

func newTestFileSystem(testInstance *testing.T) afero.Fs {
	testInstance.Helper()
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(filepath.Join(testRepositoryRootPath, ".git"), 0o755))
	require.NoError(testInstance, fileSystem.MkdirAll(testWidgetPath, 0o755))
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(testWidgetPath, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(testInstance, fileSystem.MkdirAll(testOutsidePath, 0o755))
	return fileSystem
}

func TestResolveRemoteLocators(testInstance *testing.T) {
	testCases := []struct {
		name           string
		input          string
		expectedRoot   string
		expectedSubdir string
		expectedError  error
	}{
		{
			name:           "https_with_subdirectory",
			input:          "https://example.org/group/repo.git/tools/widget",
			expectedRoot:   "https://example.org/group/repo.git",
			expectedSubdir: "tools/widget",
		},
		{
			name:           "trailing_and_repeated_separators",
			input:          "https://example.org/group/repo.git//tools/widget/",
			expectedRoot:   "https://example.org/group/repo.git",
			expectedSubdir: "tools/widget",
		},
		{
			name:         "repository_root",
			input:        "ssh://git@example.org/group/repo.git",
			expectedRoot: "ssh://git@example.org/group/repo.git",
		},
		{
			name:           "scp_like",
			input:          "git@example.org:group/repo.git/lib",
			expectedRoot:   "git@example.org:group/repo.git",
			expectedSubdir: "lib",
		},
		{
			name:           "dot_github_is_not_a_boundary",
			input:          "https://example.org/org/.github.git/workflow-templates",
			expectedRoot:   "https://example.org/org/.github.git",
			expectedSubdir: "workflow-templates",
		},
		{
			name:           "file_scheme",
			input:          "file:///srv/mirrors/mono.git/services/api",
			expectedRoot:   "file:///srv/mirrors/mono.git",
			expectedSubdir: "services/api",
		},
		{
			name:          "missing_boundary",
			input:         "https://example.org/group/repo/tools/widget",
			expectedError: locator.ErrMissingRepositoryMarker,
		},
		{
			name:          "marker_inside_segment_is_not_a_boundary",
			input:         "https://example.org/group/repo.git-mirror/tools/widget",
			expectedError: locator.ErrMissingRepositoryMarker,
		},
		{
			name:           "boundary_after_marker_inside_segment",
			input:          "https://example.org/group/repo.git-mirror/mono.git/tools",
			expectedRoot:   "https://example.org/group/repo.git-mirror/mono.git",
			expectedSubdir: "tools",
		},
		{
			name:          "parent_segment",
			input:         "https://example.org/group/repo.git/../secrets",
			expectedError: locator.ErrInvalidSubdirectory,
		},
	}

	resolver := locator.NewResolverWithFileSystem(afero.NewMemMapFs(), func() (string, error) { return testOutsidePath, nil })
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			resolved, resolveError := resolver.Resolve(testCase.input)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, resolveError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.True(testInstance, resolved.Remote)
			require.Equal(testInstance, testCase.expectedRoot, resolved.Root)
			require.Equal(testInstance, testCase.expectedSubdir, resolved.Subdirectory)
		})
	}
}

func TestResolveLocalLocators(testInstance *testing.T) {
	testCases := []struct {
		name             string
		input            string
		workingDirectory string
		expectedRoot     string
		expectedSubdir   string
		expectedError    error
	}{
		{
			name:           "absolute_subdirectory",
			input:          testWidgetPath,
			expectedRoot:   testRepositoryRootPath,
			expectedSubdir: "tools/widget",
		},
		{
			name:           "repository_root",
			input:          testRepositoryRootPath,
			expectedRoot:   testRepositoryRootPath,
			expectedSubdir: "",
		},
		{
			name:             "relative_to_working_directory",
			input:            filepath.Join("tools", "widget"),
			workingDirectory: testRepositoryRootPath,
			expectedRoot:     testRepositoryRootPath,
			expectedSubdir:   "tools/widget",
		},
		{
			name:             "empty_uses_working_directory",
			input:            "",
			workingDirectory: filepath.Join(testRepositoryRootPath, "tools"),
			expectedRoot:     testRepositoryRootPath,
			expectedSubdir:   "tools",
		},
		{
			name:             "bareword",
			input:            "bareword",
			workingDirectory: testOutsidePath,
			expectedError:    locator.ErrPathNotFound,
		},
		{
			name:          "no_enclosing_repository",
			input:         testOutsidePath,
			expectedError: locator.ErrNoEnclosingRepository,
		},
		{
			name:          "file_is_rejected",
			input:         filepath.Join(testWidgetPath, "main.go"),
			expectedError: locator.ErrInvalidSubdirectory,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			workingDirectory := testCase.workingDirectory
			resolver := locator.NewResolverWithFileSystem(newTestFileSystem(testInstance), func() (string, error) { return workingDirectory, nil })

			resolved, resolveError := resolver.Resolve(testCase.input)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, resolveError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.False(testInstance, resolved.Remote)
			require.Equal(testInstance, testCase.expectedRoot, resolved.Root)
			require.Equal(testInstance, testCase.expectedSubdir, resolved.Subdirectory)
		})
	}
}

func TestResolveLocalAcceptsGitdirFile(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	worktreeRoot := filepath.Join(string(filepath.Separator), "worktrees", "feature")
	require.NoError(testInstance, fileSystem.MkdirAll(filepath.Join(worktreeRoot, "pkg"), 0o755))
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(worktreeRoot, ".git"), []byte("gitdir: /src/mono/.git/worktrees/feature\n"), 0o644))

	resolver := locator.NewResolverWithFileSystem(fileSystem, nil)
	resolved, resolveError := resolver.Resolve(filepath.Join(worktreeRoot, "pkg"))
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, locator.Locator{Root: worktreeRoot, Subdirectory: "pkg"}, resolved)
}

func TestResolveLocalReportsWorkingDirectoryFailure(testInstance *testing.T) {
	resolver := locator.NewResolverWithFileSystem(afero.NewMemMapFs(), func() (string, error) { return "", errors.New("cwd removed") })
	_, resolveError := resolver.Resolve("relative")
	require.Error(testInstance, resolveError)
	require.Contains(testInstance, resolveError.Error(), "cwd removed")
}

func TestNormalizeSubdirectory(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "separators_only", input: "///", expected: ""},
		{name: "dot_segments", input: "./tools/./widget/", expected: "tools/widget"},
		{name: "backslashes", input: `tools\widget`, expected: "tools/widget"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			normalized, normalizeError := locator.NormalizeSubdirectory(testCase.input)
			require.NoError(testInstance, normalizeError)
			require.Equal(testInstance, testCase.expected, normalized)
		})
	}
}

func TestIsRemote(testInstance *testing.T) {
	require.True(testInstance, locator.IsRemote("HTTPS://example.org/repo.git"))
	require.True(testInstance, locator.IsRemote("git://example.org/repo.git"))
	require.True(testInstance, locator.IsRemote("deploy@build-01:mono.git/app"))
	require.False(testInstance, locator.IsRemote("/src/mono/tools"))
	require.False(testInstance, locator.IsRemote("bareword"))
	require.False(testInstance, locator.IsRemote(`C:\src\mono`))
}
