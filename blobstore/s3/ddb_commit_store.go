package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/brec/blobstore"
)

// LatestPointer is the reserved blob name whose content is the key of the
// most recently committed model file.
const LatestPointer = "LATEST"

// ErrConcurrentModification is returned when a concurrent commit wins the race.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the slice of the DynamoDB API the commit store needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DDBCommitStore is an S3 store with DynamoDB providing the compare-and-swap
// that S3 lacks. Concurrent trainers upload model files under versioned names
// and race to advance the LATEST pointer; the conditional write on the
// version row decides the winner, so a reader resolving LATEST always sees a
// fully uploaded model.
//
// The table keys commits by (base_uri, version): partition key base_uri is a
// string naming the bucket and prefix, sort key version is a number that only
// grows. Create it with:
//
//	aws dynamodb create-table \
//	  --table-name brec-models \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string // partition key, e.g. "s3://bucket/prefix"
}

// NewDDBCommitStore combines an S3 store with a DynamoDB table for commits.
// baseURI partitions the table, so several stores can share one table.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Open opens a blob for reading. Opening LatestPointer resolves the current
// model key from DynamoDB instead of S3.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == LatestPointer {
		version, modelPath, err := s.latestCommit(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(modelPath)}, nil
	}
	return s.s3Store.Open(ctx, name)
}

// Put writes a blob. Writing LatestPointer commits a new model version with
// a conditional write; everything else goes straight to S3.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == LatestPointer {
		return s.commit(ctx, string(data))
	}
	return s.s3Store.Put(ctx, name, data)
}

func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.s3Store.Create(ctx, name)
}

func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.s3Store.Delete(ctx, name)
}

func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// latestCommit returns the highest committed version and its model path, or
// version 0 when nothing has been committed yet.
func (s *DDBCommitStore) latestCommit(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // highest version first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query latest commit: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}
	return parseCommitRow(resp.Items[0])
}

func parseCommitRow(item map[string]types.AttributeValue) (uint64, string, error) {
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit row has no numeric version")
	}
	pathAttr, ok := item["model_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit row has no model_path")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, pathAttr.Value, nil
}

// commit writes version latest+1 pointing at modelPath. The conditional
// expression makes the row insert-only, so of two racing commits exactly one
// returns ErrConcurrentModification.
func (s *DDBCommitStore) commit(ctx context.Context, modelPath string) error {
	current, _, err := s.latestCommit(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":   &types.AttributeValueMemberS{Value: s.baseURI},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"model_path": &types.AttributeValueMemberS{Value: modelPath},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version: %w", err)
	}
	return nil
}

// pointerBlob is a small in-memory blob holding the resolved LATEST content.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) ReadRange(ctx context.Context, off, length int64) (blobstore.ReadCloser, error) {
	size := int64(len(b.content))
	if off >= size {
		return blobstore.NopReadCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, size)
	return blobstore.NopReadCloser(bytes.NewReader(b.content[off:end])), nil
}
