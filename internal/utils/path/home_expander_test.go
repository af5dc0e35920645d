package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/mono2repo/internal/utils/path"
)

func TestHomeExpanderExpand(testInstance *testing.T) {
	homeDirectory := filepath.Join(string(filepath.Separator), "home", "operator")
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return homeDirectory, nil })

	testCases := []struct {
		name         string
		input        string
		expectedPath string
	}{
		{name: "bare_tilde", input: "~", expectedPath: homeDirectory},
		{name: "tilde_prefix", input: "~/work/mono2repo", expectedPath: filepath.Join(homeDirectory, "work", "mono2repo")},
		{name: "other_user", input: "~someone/work", expectedPath: "~someone/work"},
		{name: "relative", input: "work/output", expectedPath: "work/output"},
		{name: "empty", input: "", expectedPath: ""},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedPath, expander.Expand(testCase.input))
		})
	}
}

func TestHomeExpanderProviderFailureLeavesInputUntouched(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "", errors.New("no home") })
	require.Equal(testInstance, "~/output", expander.Expand("~/output"))
}

func TestHomeExpanderExpandAbsolute(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	testInstance.Chdir(workingDirectory)

	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return workingDirectory, nil })

	expandedPath, expandError := expander.ExpandAbsolute(" ~/destination ")
	require.NoError(testInstance, expandError)
	require.Equal(testInstance, filepath.Join(workingDirectory, "destination"), expandedPath)

	relativePath, relativeError := expander.ExpandAbsolute("nested/../output")
	require.NoError(testInstance, relativeError)
	require.True(testInstance, filepath.IsAbs(relativePath))
	require.Equal(testInstance, "output", filepath.Base(relativePath))

	emptyPath, emptyError := expander.ExpandAbsolute("   ")
	require.NoError(testInstance, emptyError)
	require.Empty(testInstance, emptyPath)
}
