package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	// ErrConcurrentCommit is returned when another archiver committed
	// the same version first. The caller re-reads Latest and retries.
	ErrConcurrentCommit = errors.New("concurrent ledger commit")

	// ErrNoCommits is returned by Latest on an empty ledger.
	ErrNoCommits = errors.New("ledger has no commits")
)

// Commit records one archived pulse.
type Commit struct {
	// Version is the monotonically increasing ledger position.
	Version uint64
	// Segment is the blob name of the receipt segment.
	Segment string
	// Cycle is the logical cycle the pulse closed.
	Cycle uint64
	// Receipts is the number of records in the segment.
	Receipts uint32
}

// Ledger is the versioned commit log over archived segments. Commit
// must be conditional: writing an already-taken version fails with
// ErrConcurrentCommit.
type Ledger interface {
	Commit(ctx context.Context, c Commit) error
	Latest(ctx context.Context) (Commit, error)
}

// MemoryLedger is an in-memory Ledger for tests and single-process use.
type MemoryLedger struct {
	mu      sync.Mutex
	commits map[uint64]Commit
	latest  uint64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{commits: make(map[uint64]Commit)}
}

// Commit records c; an existing version fails like the conditional put.
func (l *MemoryLedger) Commit(_ context.Context, c Commit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.commits[c.Version]; ok {
		return ErrConcurrentCommit
	}
	l.commits[c.Version] = c
	if c.Version > l.latest {
		l.latest = c.Version
	}
	return nil
}

// Latest returns the highest committed version.
func (l *MemoryLedger) Latest(_ context.Context) (Commit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.latest == 0 {
		return Commit{}, ErrNoCommits
	}
	return l.commits[l.latest], nil
}

// DDBClient is the subset of the DynamoDB API the ledger uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBLedger implements Ledger on DynamoDB. Conditional writes give the
// compare-and-swap the blob store lacks, so concurrent archivers can
// coordinate safely.
//
// Table schema:
//   - Partition key: stream (string) - the archive stream name
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name reflex8-commits \
//	  --attribute-definitions AttributeName=stream,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=stream,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBLedger struct {
	client    DDBClient
	tableName string
	stream    string
}

// NewDDBLedger creates a DynamoDB-backed ledger. stream partitions the
// table so several archives can share it.
func NewDDBLedger(client DDBClient, tableName, stream string) *DDBLedger {
	return &DDBLedger{
		client:    client,
		tableName: tableName,
		stream:    stream,
	}
}

// Commit writes c with a conditional put; losing the race surfaces as
// ErrConcurrentCommit.
func (l *DDBLedger) Commit(ctx context.Context, c Commit) error {
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"stream":   &types.AttributeValueMemberS{Value: l.stream},
			"version":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", c.Version)},
			"segment":  &types.AttributeValueMemberS{Value: c.Segment},
			"cycle":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", c.Cycle)},
			"receipts": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", c.Receipts)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("ledger commit: %w", err)
	}
	return nil
}

// Latest queries the highest committed version for the stream.
func (l *DDBLedger) Latest(ctx context.Context) (Commit, error) {
	resp, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("stream = :s"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: l.stream},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return Commit{}, fmt.Errorf("ledger query: %w", err)
	}
	if len(resp.Items) == 0 {
		return Commit{}, ErrNoCommits
	}

	item := resp.Items[0]
	c := Commit{}
	if v, ok := item["version"].(*types.AttributeValueMemberN); ok {
		if _, err := fmt.Sscanf(v.Value, "%d", &c.Version); err != nil {
			return Commit{}, fmt.Errorf("ledger version: %w", err)
		}
	} else {
		return Commit{}, errors.New("ledger item missing version")
	}
	if s, ok := item["segment"].(*types.AttributeValueMemberS); ok {
		c.Segment = s.Value
	}
	if n, ok := item["cycle"].(*types.AttributeValueMemberN); ok {
		_, _ = fmt.Sscanf(n.Value, "%d", &c.Cycle)
	}
	if n, ok := item["receipts"].(*types.AttributeValueMemberN); ok {
		_, _ = fmt.Sscanf(n.Value, "%d", &c.Receipts)
	}
	return c, nil
}
