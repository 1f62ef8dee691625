package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/annkit/blobstore"
)

var _ blobstore.BlobStore = (*DDBCommitStore)(nil)

// ErrCommitConflict is returned when another publisher claimed the
// version a commit tried to write.
var ErrCommitConflict = errors.New("s3: snapshot commit conflict")

// Commit table attribute names.
const (
	attrKey      = "base_uri"
	attrVersion  = "version"
	attrSnapshot = "snapshot_path"
)

// CommitTable is the DynamoDB surface DDBCommitStore needs.
// *dynamodb.Client satisfies it.
type CommitTable interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Commit is one entry of the snapshot log.
type Commit struct {
	Version  uint64
	Snapshot string
}

// DDBCommitStore keeps snapshot blobs in an inner store and the CURRENT
// pointer in a DynamoDB commit log. Writing CURRENT appends the next
// version with a conditional put, so of two racing publishers exactly one
// wins and the other gets ErrCommitConflict. Reading CURRENT yields the
// snapshot of the newest version. Every other blob goes to the inner
// store unchanged.
//
// The table is keyed by base_uri (S, partition) and version (N, sort):
//
//	aws dynamodb create-table \
//	  --table-name annkit-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	blobstore.BlobStore

	table     CommitTable
	tableName string
	key       string
}

// NewDDBCommitStore wraps inner. key partitions the log, so several
// indexes can share one table; the inner store's URI is a natural choice.
func NewDDBCommitStore(inner blobstore.BlobStore, table CommitTable, tableName, key string) *DDBCommitStore {
	return &DDBCommitStore{
		BlobStore: inner,
		table:     table,
		tableName: tableName,
		key:       key,
	}
}

// NewDDBCommitStoreFromConfig wraps an S3 Store with a commit log in
// tableName, partitioned by the store's s3:// URI.
func NewDDBCommitStoreFromConfig(cfg aws.Config, store *Store, tableName string) *DDBCommitStore {
	return NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), tableName, store.URI())
}

// Open serves CURRENT from the newest commit.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != blobstore.CurrentName {
		return s.BlobStore.Open(ctx, name)
	}
	head, err := s.Head(ctx)
	if err != nil {
		return nil, err
	}
	if head.Version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return blobstore.BytesBlob([]byte(head.Snapshot)), nil
}

// Put commits data as the next CURRENT version.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != blobstore.CurrentName {
		return s.BlobStore.Put(ctx, name, data)
	}
	_, err := s.Commit(ctx, string(data))
	return err
}

// Create refuses CURRENT, which is only written through Put.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == blobstore.CurrentName {
		return nil, fmt.Errorf("s3: %s is written through Put", blobstore.CurrentName)
	}
	return s.BlobStore.Create(ctx, name)
}

// Delete refuses CURRENT; the commit log is append-only.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	if name == blobstore.CurrentName {
		return fmt.Errorf("s3: %s cannot be deleted from a commit log", blobstore.CurrentName)
	}
	return s.BlobStore.Delete(ctx, name)
}

// Commit appends snapshot as the version after the current head and
// returns that version.
func (s *DDBCommitStore) Commit(ctx context.Context, snapshot string) (uint64, error) {
	head, err := s.Head(ctx)
	if err != nil {
		return 0, err
	}
	next := head.Version + 1

	_, err = s.table.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			attrKey:      &types.AttributeValueMemberS{Value: s.key},
			attrVersion:  &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			attrSnapshot: &types.AttributeValueMemberS{Value: snapshot},
		},
		ConditionExpression:      aws.String("attribute_not_exists(#v)"),
		ExpressionAttributeNames: map[string]string{"#v": attrVersion},
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return 0, fmt.Errorf("%w: version %d of %s", ErrCommitConflict, next, s.key)
		}
		return 0, fmt.Errorf("s3: commit version %d: %w", next, err)
	}
	return next, nil
}

// Head returns the newest commit, or the zero Commit for an empty log.
func (s *DDBCommitStore) Head(ctx context.Context) (Commit, error) {
	commits, err := s.History(ctx, 1)
	if err != nil || len(commits) == 0 {
		return Commit{}, err
	}
	return commits[0], nil
}

// History returns up to limit commits, newest first. A limit of zero or
// less returns the whole log.
func (s *DDBCommitStore) History(ctx context.Context, limit int) ([]Commit, error) {
	in := &dynamodb.QueryInput{
		TableName:                aws.String(s.tableName),
		KeyConditionExpression:   aws.String("#k = :k"),
		ExpressionAttributeNames: map[string]string{"#k": attrKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: s.key},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(min(limit, 1<<30)))
	}

	var out []Commit
	for {
		resp, err := s.table.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("s3: query commit log: %w", err)
		}
		for _, item := range resp.Items {
			c, err := decodeCommit(item)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = resp.LastEvaluatedKey
	}
}

func decodeCommit(item map[string]types.AttributeValue) (Commit, error) {
	v, ok := item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return Commit{}, fmt.Errorf("s3: commit item without numeric %s", attrVersion)
	}
	p, ok := item[attrSnapshot].(*types.AttributeValueMemberS)
	if !ok {
		return Commit{}, fmt.Errorf("s3: commit item without %s", attrSnapshot)
	}
	version, err := strconv.ParseUint(v.Value, 10, 64)
	if err != nil {
		return Commit{}, fmt.Errorf("s3: commit version %q: %w", v.Value, err)
	}
	return Commit{Version: version, Snapshot: p.Value}, nil
}
