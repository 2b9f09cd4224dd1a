package cognito

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dirmigrate/pkg/directory"
)

type fakeClient struct {
	pages  map[string]*cip.ListUsersOutput
	inputs []*cip.ListUsersInput
	err    error
}

func (f *fakeClient) ListUsers(_ context.Context, in *cip.ListUsersInput, _ ...func(*cip.Options)) (*cip.ListUsersOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[aws.ToString(in.PaginationToken)], nil
}

func attr(name, value string) types.AttributeType {
	return types.AttributeType{Name: aws.String(name), Value: aws.String(value)}
}

func TestListUsers(t *testing.T) {
	client := &fakeClient{pages: map[string]*cip.ListUsersOutput{
		"": {
			Users: []types.UserType{{
				Username:   aws.String("alice"),
				Enabled:    true,
				UserStatus: types.UserStatusTypeConfirmed,
				Attributes: []types.AttributeType{
					attr("sub", "u1"),
					attr("email", "a@x.org"),
					attr("custom:features", "dept=Treasury,user=ordinary_user"),
				},
			}},
			PaginationToken: aws.String("t2"),
		},
		"t2": {
			Users: []types.UserType{{
				Username:   aws.String("b@x.org"),
				UserStatus: types.UserStatusTypeForceChangePassword,
				Attributes: []types.AttributeType{attr("sub", "u2")},
			}},
		},
	}}
	src := New(client, 25)

	var records []directory.Record
	pages, err := directory.Walk(context.Background(), src, "eu-west-2_pool", 0,
		func(_ context.Context, _ int, p *directory.Page) error {
			records = append(records, p.Records...)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, records, 2)

	assert.Equal(t, "u1", records[0].ID)
	assert.Equal(t, "a@x.org", records[0].Contact)
	assert.True(t, records[0].Enabled)
	assert.Equal(t, "CONFIRMED", records[0].Status)
	v, ok := records[0].Attribute("custom:features")
	assert.True(t, ok)
	assert.Equal(t, "dept=Treasury,user=ordinary_user", v)

	// Username is the fallback contact.
	assert.Equal(t, "u2", records[1].ID)
	assert.Equal(t, "b@x.org", records[1].Contact)
	assert.False(t, records[1].Enabled)

	require.Len(t, client.inputs, 2)
	assert.Equal(t, "eu-west-2_pool", aws.ToString(client.inputs[0].UserPoolId))
	assert.Nil(t, client.inputs[0].PaginationToken)
	assert.Equal(t, int32(25), aws.ToInt32(client.inputs[0].Limit))
	assert.Equal(t, "t2", aws.ToString(client.inputs[1].PaginationToken))
}

func TestListUsersError(t *testing.T) {
	src := New(&fakeClient{err: errors.New("AccessDenied")}, 0)
	_, err := src.ListUsers(context.Background(), "pool", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestPageSizeClamped(t *testing.T) {
	assert.Equal(t, int32(MaxPageSize), New(&fakeClient{}, 500).pageSize)
	assert.Equal(t, int32(0), New(&fakeClient{}, 0).pageSize)
}
