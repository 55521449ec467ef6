package streams

import (
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

// eventAttribute converts a Lambda event attribute into its DynamoDB API form.
func eventAttribute(v events.DynamoDBAttributeValue) (dynamodbtypes.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &dynamodbtypes.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &dynamodbtypes.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBinary:
		return &dynamodbtypes.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeBoolean:
		return &dynamodbtypes.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &dynamodbtypes.AttributeValueMemberNULL{Value: v.IsNull()}, nil
	case events.DataTypeStringSet:
		return &dynamodbtypes.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &dynamodbtypes.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &dynamodbtypes.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeMap:
		m, err := eventImage(v.Map())
		if err != nil {
			return nil, err
		}
		return &dynamodbtypes.AttributeValueMemberM{Value: m}, nil
	case events.DataTypeList:
		list := make([]dynamodbtypes.AttributeValue, len(v.List()))
		for i, item := range v.List() {
			av, err := eventAttribute(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = av
		}
		return &dynamodbtypes.AttributeValueMemberL{Value: list}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type: %v", v.DataType())
	}
}

func eventImage(image map[string]events.DynamoDBAttributeValue) (map[string]dynamodbtypes.AttributeValue, error) {
	item := make(map[string]dynamodbtypes.AttributeValue, len(image))
	for k, v := range image {
		av, err := eventAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// streamAttribute converts a DynamoDB Streams API attribute into its DynamoDB
// API form. The two SDK packages declare identical but distinct types.
func streamAttribute(v streamtypes.AttributeValue) (dynamodbtypes.AttributeValue, error) {
	switch v := v.(type) {
	case *streamtypes.AttributeValueMemberS:
		return &dynamodbtypes.AttributeValueMemberS{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberN:
		return &dynamodbtypes.AttributeValueMemberN{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberB:
		return &dynamodbtypes.AttributeValueMemberB{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberBOOL:
		return &dynamodbtypes.AttributeValueMemberBOOL{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberNULL:
		return &dynamodbtypes.AttributeValueMemberNULL{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberSS:
		return &dynamodbtypes.AttributeValueMemberSS{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberNS:
		return &dynamodbtypes.AttributeValueMemberNS{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberBS:
		return &dynamodbtypes.AttributeValueMemberBS{Value: v.Value}, nil
	case *streamtypes.AttributeValueMemberM:
		m, err := streamImage(v.Value)
		if err != nil {
			return nil, err
		}
		return &dynamodbtypes.AttributeValueMemberM{Value: m}, nil
	case *streamtypes.AttributeValueMemberL:
		list := make([]dynamodbtypes.AttributeValue, len(v.Value))
		for i, item := range v.Value {
			av, err := streamAttribute(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = av
		}
		return &dynamodbtypes.AttributeValueMemberL{Value: list}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %T", v)
	}
}

func streamImage(image map[string]streamtypes.AttributeValue) (map[string]dynamodbtypes.AttributeValue, error) {
	item := make(map[string]dynamodbtypes.AttributeValue, len(image))
	for k, v := range image {
		av, err := streamAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// questionKey is the key image of a question change.
type questionKey struct {
	TopicID        string `dynamodbav:"topic_id"`
	QuestionNumber string `dynamodbav:"question_number"`
}

func decodeKey(item map[string]dynamodbtypes.AttributeValue) (questionKey, error) {
	var k questionKey
	if err := attributevalue.UnmarshalMap(item, &k); err != nil {
		return questionKey{}, err
	}
	if k.TopicID == "" {
		return questionKey{}, fmt.Errorf("change carries no topic_id")
	}
	return k, nil
}
