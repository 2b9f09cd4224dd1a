// Package cognito lists users from an AWS Cognito user pool.
package cognito

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/marmos91/dirmigrate/internal/awsutil"
	"github.com/marmos91/dirmigrate/pkg/directory"
)

// Attribute names read from every Cognito user.
const (
	AttrSub   = "sub"
	AttrEmail = "email"
)

// MaxPageSize is the largest Limit accepted by ListUsers.
const MaxPageSize = 60

// ListUsersAPI is the subset of the Cognito client used by Source.
type ListUsersAPI interface {
	ListUsers(ctx context.Context, params *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
}

// Config configures the Cognito client.
type Config struct {
	awsutil.Config

	// PageSize is the ListUsers Limit (1-60, 0 for the service default).
	PageSize int32
}

// Source implements directory.Source over Cognito ListUsers.
type Source struct {
	client   ListUsersAPI
	pageSize int32
}

// New creates a Source around an existing client.
func New(client ListUsersAPI, pageSize int32) *Source {
	if pageSize < 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Source{client: client, pageSize: pageSize}
}

// NewFromConfig creates a Source by building a Cognito client from config.
func NewFromConfig(ctx context.Context, config Config) (*Source, error) {
	awsCfg, err := awsutil.Load(ctx, config.Config)
	if err != nil {
		return nil, err
	}

	var opts []func(*cip.Options)
	if config.Endpoint != "" {
		opts = append(opts, func(o *cip.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	return New(cip.NewFromConfig(awsCfg, opts...), config.PageSize), nil
}

// ListUsers implements directory.Source.
func (s *Source) ListUsers(ctx context.Context, poolID, token string) (*directory.Page, error) {
	input := &cip.ListUsersInput{UserPoolId: aws.String(poolID)}
	if token != "" {
		input.PaginationToken = aws.String(token)
	}
	if s.pageSize > 0 {
		input.Limit = aws.Int32(s.pageSize)
	}

	out, err := s.client.ListUsers(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("cognito ListUsers: %w", err)
	}

	page := &directory.Page{
		Records:   make([]directory.Record, 0, len(out.Users)),
		NextToken: aws.ToString(out.PaginationToken),
	}
	for _, u := range out.Users {
		page.Records = append(page.Records, toRecord(u))
	}
	return page, nil
}

// toRecord converts a Cognito user. The stable id is the "sub" attribute;
// the contact is the "email" attribute or, when absent, the username.
func toRecord(u types.UserType) directory.Record {
	rec := directory.Record{
		Username:   aws.ToString(u.Username),
		Enabled:    u.Enabled,
		Status:     string(u.UserStatus),
		Attributes: make([]directory.Attribute, 0, len(u.Attributes)),
	}
	for _, a := range u.Attributes {
		attr := directory.Attribute{Name: aws.ToString(a.Name), Value: aws.ToString(a.Value)}
		rec.Attributes = append(rec.Attributes, attr)
		switch attr.Name {
		case AttrSub:
			rec.ID = attr.Value
		case AttrEmail:
			rec.Contact = attr.Value
		}
	}
	if rec.Contact == "" {
		rec.Contact = rec.Username
	}
	return rec
}

var _ directory.Source = (*Source)(nil)
