package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
)

// Doer is the subset of the gateway the client needs.
type Doer interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// Client exposes the backend endpoints as typed calls. Every call goes
// through the gateway; the client never touches credentials.
type Client struct {
	gw Doer
}

// NewClient creates a Client over gw.
func NewClient(gw Doer) *Client {
	return &Client{gw: gw}
}

func (c *Client) Me(ctx context.Context) (domain.Session, error) {
	var resp identityResponse
	if err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/auth/me"}, &resp); err != nil {
		return domain.Unauthenticated, err
	}
	s, err := resp.toDomain()
	if err != nil {
		return domain.Unauthenticated, &gateway.Error{Kind: gateway.KindServer, Op: "GET /auth/me", Message: "malformed identity", Err: err}
	}
	return s, nil
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		JSON:   loginRequest{Email: email, Password: password},
	}, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
}

// UploadScan uploads doc for server-side scanning and returns its file reference.
func (c *Client) UploadScan(ctx context.Context, doc domain.Document) (string, error) {
	var resp uploadResponse
	err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/files/upload/scan/",
		File: &gateway.FilePart{
			Field:       "file",
			Name:        doc.Name,
			ContentType: doc.ContentType,
			Content:     doc.Content,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.FileID == "" {
		return "", &gateway.Error{Kind: gateway.KindServer, Op: "POST /files/upload/scan/", Message: "upload response has no file_id"}
	}
	return string(resp.FileID), nil
}

// ScanStatus reports the scan verdict for an uploaded file.
func (c *Client) ScanStatus(ctx context.Context, fileRef string) (ScanReport, error) {
	path := "/files/" + url.PathEscape(fileRef) + "/scan"
	var resp scanResponse
	if err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: path}, &resp); err != nil {
		return ScanReport{}, err
	}
	if resp.FileID != "" && string(resp.FileID) != fileRef {
		return ScanReport{}, &gateway.Error{
			Kind:    gateway.KindServer,
			Op:      "GET " + path,
			Message: fmt.Sprintf("scan report is for file %s, expected %s", resp.FileID, fileRef),
		}
	}
	return ScanReport{
		FileRef: fileRef,
		Status:  domain.ParseScanStatus(resp.Status),
		Detail:  resp.Detail,
	}, nil
}

// GenerateParams are the inputs of a generation request.
type GenerateParams struct {
	FileRef      string
	Prompt       string
	Difficulty   domain.Difficulty
	NumQuestions int
}

func (c *Client) Generate(ctx context.Context, p GenerateParams) (Generated, error) {
	var resp generateResponse
	err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/gpt/generate",
		JSON: generateRequest{
			Prompt:          p.Prompt,
			StudyMaterialID: ID(p.FileRef),
			Difficulty:      string(p.Difficulty),
			NumQuestions:    p.NumQuestions,
		},
	}, &resp)
	if err != nil {
		return Generated{}, err
	}
	if resp.TestID == "" {
		return Generated{}, &gateway.Error{Kind: gateway.KindServer, Op: "POST /gpt/generate", Message: "generation response has no test_id"}
	}

	g := Generated{TestID: string(resp.TestID)}
	if resp.Metadata != nil {
		g.Metadata = domain.TestMetadata{
			Name:         resp.Metadata.Name,
			Description:  resp.Metadata.Description,
			Difficulty:   domain.Difficulty(resp.Metadata.Difficulty),
			NumQuestions: resp.Metadata.NumQuestions,
		}
	}
	return g, nil
}

func (c *Client) GetTest(ctx context.Context, testID string) (*domain.Test, error) {
	path := "/tests/" + url.PathEscape(testID)
	var resp testPayload
	if err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: path}, &resp); err != nil {
		return nil, err
	}
	t := resp.toDomain()
	if err := t.Validate(); err != nil {
		return nil, &gateway.Error{Kind: gateway.KindServer, Op: "GET " + path, Message: "malformed test", Err: err}
	}
	return t, nil
}

func (c *Client) Submit(ctx context.Context, testID string, answers domain.Answers) (domain.SubmissionResult, error) {
	var resp resultPayload
	err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/tests/submit",
		JSON:   submitRequest{TestID: ID(testID), Answers: answers},
	}, &resp)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return resp.toDomain(), nil
}

func (c *Client) Results(ctx context.Context) ([]domain.SubmissionResult, error) {
	var resp []resultPayload
	if err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/tests/results"}, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SubmissionResult, 0, len(resp))
	for _, r := range resp {
		results = append(results, r.toDomain())
	}
	return results, nil
}
