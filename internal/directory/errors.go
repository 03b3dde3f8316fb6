package directory

import (
	"encoding/json"
	"fmt"
)

// Kind 区分 Releases 目录访问失败的类别。
type Kind int

const (
	KindRepositoryNotFound Kind = iota + 1
	KindAuthDenied
	KindMalformedResponse
	KindUpstreamError
	KindTransportError
)

// Code 返回对外 JSON 中使用的错误码。
func (k Kind) Code() string {
	switch k {
	case KindRepositoryNotFound:
		return "REPO_NOT_FOUND"
	case KindAuthDenied:
		return "AUTH_ERROR"
	case KindMalformedResponse:
		return "MALFORMED_RESPONSE"
	case KindUpstreamError:
		return "UPSTREAM_ERROR"
	case KindTransportError:
		return "TRANSPORT_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error 描述一次失败的目录访问，附带可展示给运维人员的排查建议。
type Error struct {
	Kind        Kind
	Message     string
	Suggestions []string
	Repository  string
	StatusCode  int
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type errorPayload struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	Repository  string   `json:"repository"`
	StatusCode  int      `json:"status_code,omitempty"`
}

// MarshalJSON 输出状态接口约定的结构，底层错误不会外泄。
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorPayload{
		Code:        e.Kind.Code(),
		Message:     e.Message,
		Suggestions: e.Suggestions,
		Repository:  e.Repository,
		StatusCode:  e.StatusCode,
	})
}

func notFoundError(repo Repository, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("Repository not found: %s", repo.FullName())
	}
	return &Error{
		Kind:    KindRepositoryNotFound,
		Message: message,
		Suggestions: []string{
			fmt.Sprintf("Verify the repository exists at: %s", repo.URL),
			"Check if the repository name is correct (case-sensitive)",
			"If the repository is private, set the GITHUB_TOKEN environment variable",
			"Ensure the repository has at least one release created",
		},
		Repository: repo.FullName(),
		StatusCode: 404,
	}
}

func authError(repo Repository, status int) *Error {
	return &Error{
		Kind:    KindAuthDenied,
		Message: "Authentication failed or repository access denied",
		Suggestions: []string{
			"If the repository is private, set the GITHUB_TOKEN environment variable",
			"Verify the token has access to the repository",
			"Check if the repository exists and is accessible",
		},
		Repository: repo.FullName(),
		StatusCode: status,
	}
}

func upstreamError(repo Repository, status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("GitHub API returned status %d", status)
	}
	return &Error{
		Kind:       KindUpstreamError,
		Message:    message,
		Repository: repo.FullName(),
		StatusCode: status,
	}
}

func malformedError(repo Repository, err error) *Error {
	return &Error{
		Kind:       KindMalformedResponse,
		Message:    "GitHub API returned a response that could not be decoded",
		Repository: repo.FullName(),
		Err:        err,
	}
}

func transportError(repo Repository, err error) *Error {
	return &Error{
		Kind:    KindTransportError,
		Message: "Failed to reach the GitHub API",
		Suggestions: []string{
			"Check network connectivity and DNS resolution from the server",
			"Verify GitHub.APIURL points at a reachable endpoint",
		},
		Repository: repo.FullName(),
		Err:        err,
	}
}
