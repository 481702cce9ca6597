// Package dynamo реализует storage.Table поверх Amazon DynamoDB.
//
// Одна реализация обслуживает любую таблицу со схемой pk (HASH) / sk (RANGE);
// записи маршалятся по тегам dynamodbav.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
)

const (
	// batchSize — предел BatchWriteItem.
	batchSize = 25
	// unprocessedAttempts — сколько раз переотправляются необработанные элементы батча.
	unprocessedAttempts = 5
)

// API — операции клиента DynamoDB, которыми пользуется Table.
type API interface {
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Table — таблица DynamoDB.
type Table struct {
	client     API
	name       string
	retryDelay time.Duration
}

func New(client API, name string) *Table {
	return &Table{
		client:     client,
		name:       name,
		retryDelay: 50 * time.Millisecond,
	}
}

func (t *Table) Name() string {
	return t.name
}

// Put пишет элементы батчами по 25, переотправляя необработанные.
func (t *Table) Put(ctx context.Context, items ...any) error {
	const op = "storage.dynamo.Put"

	if len(items) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrEmptyWrite)
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for _, v := range items {
		av, err := attributevalue.MarshalMap(v)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := checkKey(av); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	for start := 0; start < len(requests); start += batchSize {
		end := min(start+batchSize, len(requests))
		if err := t.writeBatch(ctx, requests[start:end]); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (t *Table) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{t.name: batch}
	for attempt := 0; attempt < unprocessedAttempts; attempt++ {
		out, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		if len(out.UnprocessedItems[t.name]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelay * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("%d items left unprocessed", len(pending[t.name]))
}

func (t *Table) Get(ctx context.Context, key storage.Key, out any) error {
	const op = "storage.dynamo.Get"

	res, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(res.Item) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Query читает все страницы partition key.
func (t *Table) Query(ctx context.Context, pk string, out any) error {
	const op = "storage.dynamo.Query"

	paginator := dynamodb.NewQueryPaginator(t.client, &dynamodb.QueryInput{
		TableName:                aws.String(t.name),
		KeyConditionExpression:   aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{"#pk": storage.AttrPK},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: aws.Bool(true),
	})

	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, page.Items...)
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update выполняет UpdateItem с условием существования записи.
func (t *Table) Update(ctx context.Context, key storage.Key, attrs map[string]any) error {
	const op = "storage.dynamo.Update"

	expr, err := buildUpdate(attrs)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	in := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       keyAttributes(key),
		UpdateExpression:          aws.String(expr.update),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  expr.names,
		ExpressionAttributeValues: expr.values,
	}
	in.ExpressionAttributeNames["#pk"] = storage.AttrPK
	if len(in.ExpressionAttributeValues) == 0 {
		in.ExpressionAttributeValues = nil
	}

	_, err = t.client.UpdateItem(ctx, in)
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type updateExpression struct {
	update string
	names  map[string]string
	values map[string]types.AttributeValue
}

// buildUpdate собирает "SET ... REMOVE ..." в детерминированном порядке имён.
func buildUpdate(attrs map[string]any) (updateExpression, error) {
	if len(attrs) == 0 {
		return updateExpression{}, errors.New("nothing to update")
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if name == storage.AttrPK || name == storage.AttrSK {
			return updateExpression{}, fmt.Errorf("key attribute %q is immutable", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	expr := updateExpression{
		names:  make(map[string]string, len(names)+1),
		values: make(map[string]types.AttributeValue, len(names)),
	}
	var set, remove []string
	for i, name := range names {
		placeholder := "#a" + strconv.Itoa(i)
		expr.names[placeholder] = name

		value := attrs[name]
		if value == nil {
			remove = append(remove, placeholder)
			continue
		}
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return updateExpression{}, fmt.Errorf("marshal %s: %w", name, err)
		}
		valueRef := ":v" + strconv.Itoa(i)
		expr.values[valueRef] = av
		set = append(set, placeholder+" = "+valueRef)
	}

	var parts []string
	if len(set) > 0 {
		parts = append(parts, "SET "+strings.Join(set, ", "))
	}
	if len(remove) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(remove, ", "))
	}
	expr.update = strings.Join(parts, " ")
	return expr, nil
}

func keyAttributes(key storage.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		storage.AttrPK: &types.AttributeValueMemberS{Value: key.PK},
		storage.AttrSK: &types.AttributeValueMemberS{Value: key.SK},
	}
}

func checkKey(item map[string]types.AttributeValue) error {
	for _, attr := range []string{storage.AttrPK, storage.AttrSK} {
		s, ok := item[attr].(*types.AttributeValueMemberS)
		if !ok || s.Value == "" {
			return fmt.Errorf("item must have non-empty string attribute %q", attr)
		}
	}
	return nil
}
