// Package locator splits a single source string into a repository root and a
// subdirectory, either lexically for remote URLs or by walking the local
// filesystem up to the enclosing repository.
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

const (
	repositoryMarkerConstant               = ".git"
	subdirectorySeparatorConstant          = "/"
	currentDirectoryConstant               = "."
	parentDirectoryConstant                = ".."
	missingRepositoryMarkerMessageConstant = "remote locator has no .git repository boundary"
	noEnclosingRepositoryMessageConstant   = "no enclosing git repository"
	pathNotFoundMessageConstant            = "path does not exist"
	invalidSubdirectoryMessageConstant     = "invalid subdirectory"
	locatorErrorTemplateConstant           = "%w: %s"
	parentSegmentTemplateConstant          = "%w: %q escapes the repository root"
	notDirectoryTemplateConstant           = "%w: %s is not a directory"
	workingDirectoryErrorTemplateConstant  = "unable to determine working directory: %w"
	relativePathErrorTemplateConstant      = "unable to relate %s to repository root %s: %w"
	markerInspectionErrorTemplateConstant  = "unable to inspect %s: %w"
)

var (
	// ErrMissingRepositoryMarker indicates a remote locator without a ".git" boundary.
	ErrMissingRepositoryMarker = errors.New(missingRepositoryMarkerMessageConstant)
	// ErrNoEnclosingRepository indicates the filesystem walk reached the root without finding ".git".
	ErrNoEnclosingRepository = errors.New(noEnclosingRepositoryMessageConstant)
	// ErrPathNotFound indicates a local locator that does not exist.
	ErrPathNotFound = errors.New(pathNotFoundMessageConstant)
	// ErrInvalidSubdirectory indicates a subdirectory that cannot be expressed inside the repository.
	ErrInvalidSubdirectory = errors.New(invalidSubdirectoryMessageConstant)

	remoteSchemePrefixes = []string{"http://", "https://", "git://", "ssh://", "file://"}
	scpLikeRemotePattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+@[A-Za-z0-9.-]+:`)
)

// Locator identifies a repository root and a subdirectory inside it. An empty Subdirectory denotes the
// repository root itself; a non-empty one never starts or ends with a separator.
type Locator struct {
	Root         string
	Subdirectory string
	Remote       bool
}

// WorkingDirectoryProvider returns the directory relative local locators are resolved against.
type WorkingDirectoryProvider func() (string, error)

// Resolver turns locator strings into Locators.
type Resolver struct {
	fileSystem               afero.Fs
	workingDirectoryProvider WorkingDirectoryProvider
}

// NewResolver constructs a Resolver backed by the operating system filesystem.
func NewResolver() *Resolver {
	return NewResolverWithFileSystem(afero.NewOsFs(), os.Getwd)
}

// NewResolverWithFileSystem constructs a Resolver over the provided filesystem and working directory.
func NewResolverWithFileSystem(fileSystem afero.Fs, workingDirectoryProvider WorkingDirectoryProvider) *Resolver {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if workingDirectoryProvider == nil {
		workingDirectoryProvider = os.Getwd
	}
	return &Resolver{fileSystem: fileSystem, workingDirectoryProvider: workingDirectoryProvider}
}

// IsRemote reports whether input is written as a network locator.
func IsRemote(input string) bool {
	trimmedInput := strings.TrimSpace(input)
	lowercaseInput := strings.ToLower(trimmedInput)
	for _, schemePrefix := range remoteSchemePrefixes {
		if strings.HasPrefix(lowercaseInput, schemePrefix) {
			return true
		}
	}
	return scpLikeRemotePattern.MatchString(trimmedInput)
}

// Resolve parses input. Remote locators are split at the first ".git" followed by "/" or the end of
// input; local locators are resolved by walking up to the nearest directory holding ".git".
func (resolver *Resolver) Resolve(input string) (Locator, error) {
	if IsRemote(input) {
		return ResolveRemote(input)
	}
	return resolver.resolveLocal(input)
}

// ResolveRemote splits a remote locator at its repository boundary.
func ResolveRemote(input string) (Locator, error) {
	trimmedInput := strings.TrimSpace(input)
	boundaryIndex := repositoryBoundaryIndex(trimmedInput)
	if boundaryIndex < 0 {
		return Locator{}, fmt.Errorf(locatorErrorTemplateConstant, ErrMissingRepositoryMarker, trimmedInput)
	}

	subdirectory, subdirectoryError := NormalizeSubdirectory(trimmedInput[boundaryIndex:])
	if subdirectoryError != nil {
		return Locator{}, subdirectoryError
	}
	return Locator{Root: trimmedInput[:boundaryIndex], Subdirectory: subdirectory, Remote: true}, nil
}

// NormalizeSubdirectory converts a relative path to the canonical form: forward slashes, no empty or "."
// segments, no leading or trailing separator. A ".." segment is rejected.
func NormalizeSubdirectory(rawSubdirectory string) (string, error) {
	segments := strings.Split(strings.ReplaceAll(rawSubdirectory, `\`, subdirectorySeparatorConstant), subdirectorySeparatorConstant)
	normalizedSegments := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch segment {
		case "", currentDirectoryConstant:
			continue
		case parentDirectoryConstant:
			return "", fmt.Errorf(parentSegmentTemplateConstant, ErrInvalidSubdirectory, rawSubdirectory)
		default:
			normalizedSegments = append(normalizedSegments, segment)
		}
	}
	return strings.Join(normalizedSegments, subdirectorySeparatorConstant), nil
}

// repositoryBoundaryIndex returns the index just past the first ".git" that ends a path segment, or -1.
func repositoryBoundaryIndex(input string) int {
	searchOffset := 0
	for {
		markerIndex := strings.Index(input[searchOffset:], repositoryMarkerConstant)
		if markerIndex < 0 {
			return -1
		}
		boundaryIndex := searchOffset + markerIndex + len(repositoryMarkerConstant)
		if boundaryIndex == len(input) || input[boundaryIndex] == '/' {
			return boundaryIndex
		}
		searchOffset = boundaryIndex
	}
}

func (resolver *Resolver) resolveLocal(input string) (Locator, error) {
	candidatePath := strings.TrimSpace(input)
	if len(candidatePath) == 0 {
		candidatePath = currentDirectoryConstant
	}
	if !filepath.IsAbs(candidatePath) {
		workingDirectory, workingDirectoryError := resolver.workingDirectoryProvider()
		if workingDirectoryError != nil {
			return Locator{}, fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
		}
		candidatePath = filepath.Join(workingDirectory, candidatePath)
	}
	candidatePath = filepath.Clean(candidatePath)

	information, statError := resolver.fileSystem.Stat(candidatePath)
	if statError != nil {
		return Locator{}, fmt.Errorf(locatorErrorTemplateConstant, ErrPathNotFound, candidatePath)
	}
	if !information.IsDir() {
		return Locator{}, fmt.Errorf(notDirectoryTemplateConstant, ErrInvalidSubdirectory, candidatePath)
	}

	repositoryRoot, rootError := resolver.findEnclosingRepository(candidatePath)
	if rootError != nil {
		return Locator{}, rootError
	}

	relativePath, relativeError := filepath.Rel(repositoryRoot, candidatePath)
	if relativeError != nil {
		return Locator{}, fmt.Errorf(relativePathErrorTemplateConstant, candidatePath, repositoryRoot, relativeError)
	}
	subdirectory, subdirectoryError := NormalizeSubdirectory(filepath.ToSlash(relativePath))
	if subdirectoryError != nil {
		return Locator{}, subdirectoryError
	}

	return Locator{Root: repositoryRoot, Subdirectory: subdirectory}, nil
}

// findEnclosingRepository walks from startDirectory to the filesystem root, inclusive, and returns the
// first directory containing a ".git" entry. The entry may be a directory or a gitdir file.
func (resolver *Resolver) findEnclosingRepository(startDirectory string) (string, error) {
	currentDirectory := startDirectory
	for {
		markerPath := filepath.Join(currentDirectory, repositoryMarkerConstant)
		markerExists, existsError := afero.Exists(resolver.fileSystem, markerPath)
		if existsError != nil {
			return "", fmt.Errorf(markerInspectionErrorTemplateConstant, markerPath, existsError)
		}
		if markerExists {
			return currentDirectory, nil
		}

		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			return "", fmt.Errorf(locatorErrorTemplateConstant, ErrNoEnclosingRepository, startDirectory)
		}
		currentDirectory = parentDirectory
	}
}
