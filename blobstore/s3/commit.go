package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/rann/blobstore"
)

// CurrentName is the pointer blob a CommitStore intercepts. Reads come
// from the latest DynamoDB commit row, writes are conditional puts.
const CurrentName = "CURRENT"

// ErrConcurrentModification is returned when another writer committed a
// newer CURRENT pointer between read and write.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore wraps an S3 store and replaces the CURRENT pointer blob
// with a DynamoDB commit log, giving the compare-and-swap semantics S3
// lacks. Everything else passes through.
//
// Table schema:
//   - Partition key: base_uri (string), the store's logical location
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name rann-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	inner     blobstore.Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

// NewCommitStore wraps inner with a DynamoDB-backed CURRENT pointer.
// baseURI identifies this store in the commit table, conventionally
// "s3://bucket/prefix".
func NewCommitStore(inner blobstore.Store, ddb DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		inner:     inner,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Open opens a blob for reading. CURRENT resolves through DynamoDB.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != CurrentName {
		return s.inner.Open(ctx, name)
	}

	version, target, err := s.latestCommit(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return &pointerBlob{content: []byte(target)}, nil
}

// Create passes through; the CURRENT pointer only supports Put.
func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

// Put writes a blob. For CURRENT it performs a conditional DynamoDB
// commit and returns ErrConcurrentModification when it loses the race.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != CurrentName {
		return s.inner.Put(ctx, name, data)
	}
	return s.commit(ctx, string(data))
}

// Delete removes a blob.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List lists blobs with prefix.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// latestCommit queries the newest commit row. Version 0 means no commit
// exists yet.
func (s *CommitStore) latestCommit(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit row has no numeric version")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit row has no target")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}

	return version, targetAttr.Value, nil
}

// commit writes the next version row; the condition rejects a version
// another writer claimed first.
func (s *CommitStore) commit(ctx context.Context, target string) error {
	current, _, err := s.latestCommit(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: s.baseURI},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"target":   &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit CURRENT pointer: %w", err)
	}

	return nil
}

// pointerBlob serves the resolved CURRENT content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) Bytes() ([]byte, error) {
	return b.content, nil
}
