package stack

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCFN struct {
	stacks map[string]cfntypes.Stack

	createCalls int
	updateCalls int
	deleteCalls int
	updateErr   error

	// Errors returned by successive DescribeStacks calls before the
	// stack map is consulted.
	describeErrs []error
}

func (f *fakeCFN) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if len(f.describeErrs) > 0 {
		err := f.describeErrs[0]
		f.describeErrs = f.describeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	stack, ok := f.stacks[aws.ToString(params.StackName)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id " + aws.ToString(params.StackName) + " does not exist"}
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cfntypes.Stack{stack}}, nil
}

func (f *fakeCFN) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.createCalls++
	return &cloudformation.CreateStackOutput{}, nil
}

func (f *fakeCFN) UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &cloudformation.UpdateStackOutput{}, nil
}

func (f *fakeCFN) DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	f.deleteCalls++
	return &cloudformation.DeleteStackOutput{}, nil
}

func (f *fakeCFN) ValidateTemplate(ctx context.Context, params *cloudformation.ValidateTemplateInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ValidateTemplateOutput, error) {
	return &cloudformation.ValidateTemplateOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpCreatesMissingStack(t *testing.T) {
	cfn := &fakeCFN{stacks: map[string]cfntypes.Stack{}}
	m := NewManager(cfn, testLogger())

	changed, err := m.Up(context.Background(), "app-staging", "{}", map[string]string{"Environment": "staging"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, cfn.createCalls)
	assert.Equal(t, 0, cfn.updateCalls)
}

func TestUpUpdatesExistingStack(t *testing.T) {
	cfn := &fakeCFN{stacks: map[string]cfntypes.Stack{
		"app-staging": {StackStatus: cfntypes.StackStatusCreateComplete},
	}}
	m := NewManager(cfn, testLogger())

	changed, err := m.Up(context.Background(), "app-staging", "{}", nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, cfn.createCalls)
	assert.Equal(t, 1, cfn.updateCalls)
}

func TestUpNoUpdatesIsNotAnError(t *testing.T) {
	cfn := &fakeCFN{
		stacks: map[string]cfntypes.Stack{
			"app-staging": {StackStatus: cfntypes.StackStatusCreateComplete},
		},
		updateErr: &smithy.GenericAPIError{Code: "ValidationError", Message: "No updates are to be performed."},
	}
	m := NewManager(cfn, testLogger())

	changed, err := m.Up(context.Background(), "app-staging", "{}", nil)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDownIgnoresMissingStack(t *testing.T) {
	cfn := &fakeCFN{stacks: map[string]cfntypes.Stack{}}
	m := NewManager(cfn, testLogger())

	require.NoError(t, m.Down(context.Background(), "app-staging"))
	assert.Equal(t, 1, cfn.deleteCalls)
}

func TestWaitReturnsOnTerminalStatus(t *testing.T) {
	cfn := &fakeCFN{stacks: map[string]cfntypes.Stack{
		"app-staging": {
			StackStatus: cfntypes.StackStatusUpdateComplete,
			Outputs: []cfntypes.Output{
				{OutputKey: aws.String(OutputLoadBalancerDNS), OutputValue: aws.String("lb.example.com")},
				{OutputKey: aws.String(OutputDatabaseAddress), OutputValue: aws.String("db.example.com")},
			},
		},
	}}
	m := NewManager(cfn, testLogger())

	info, err := m.Wait(context.Background(), "app-staging", time.Millisecond, 3)
	require.NoError(t, err)
	assert.Equal(t, string(cfntypes.StackStatusUpdateComplete), info.Status)
	assert.Equal(t, "lb.example.com", info.Outputs[OutputLoadBalancerDNS])
	assert.Equal(t, "db.example.com", info.Outputs[OutputDatabaseAddress])
}

func TestWaitFailsOnRollback(t *testing.T) {
	cfn := &fakeCFN{stacks: map[string]cfntypes.Stack{
		"app-staging": {StackStatus: cfntypes.StackStatusUpdateRollbackComplete},
	}}
	m := NewManager(cfn, testLogger())

	_, err := m.Wait(context.Background(), "app-staging", time.Millisecond, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure state")
}

func TestWaitKeepsPollingThroughThrottling(t *testing.T) {
	cfn := &fakeCFN{
		stacks: map[string]cfntypes.Stack{
			"app-staging": {StackStatus: cfntypes.StackStatusUpdateRollbackComplete},
		},
		describeErrs: []error{
			&smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"},
		},
	}
	m := NewManager(cfn, testLogger())

	_, err := m.Wait(context.Background(), "app-staging", time.Millisecond, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure state")
}

func TestWaitTreatsMissingStackAsDeleted(t *testing.T) {
	cfn := &fakeCFN{stacks: map[string]cfntypes.Stack{}}
	m := NewManager(cfn, testLogger())

	info, err := m.Wait(context.Background(), "app-staging", time.Millisecond, 3)
	require.NoError(t, err)
	assert.Equal(t, string(cfntypes.StackStatusDeleteComplete), info.Status)
}

func TestWaitExhaustsAttempts(t *testing.T) {
	cfn := &fakeCFN{stacks: map[string]cfntypes.Stack{
		"app-staging": {StackStatus: cfntypes.StackStatusUpdateInProgress},
	}}
	m := NewManager(cfn, testLogger())

	_, err := m.Wait(context.Background(), "app-staging", time.Millisecond, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not stabilize")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status string
		want   State
	}{
		{string(cfntypes.StackStatusCreateComplete), StateSucceeded},
		{string(cfntypes.StackStatusDeleteComplete), StateSucceeded},
		{string(cfntypes.StackStatusRollbackComplete), StateFailed},
		{string(cfntypes.StackStatusCreateFailed), StateFailed},
		{string(cfntypes.StackStatusUpdateInProgress), StateInProgress},
		{string(cfntypes.StackStatusCreateInProgress), StateInProgress},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.status), tc.status)
	}
}
