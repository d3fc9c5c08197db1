package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FlowGuard/internal/engine/features"
	"FlowGuard/internal/model"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName    = "flowguard.v1.Classifier"
	classifyMethod = "/" + serviceName + "/Classify"
)

// GRPCClassifier delegates classification to a remote service. Requests and responses are
// google.protobuf.Struct messages:
//
//	request:  {"names": [string...], "features": [number...]}
//	response: {"label": string, "confidence": number, "probabilities": {label: number}}
type GRPCClassifier struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// NewGRPCClassifier creates a client for the service at addr. Extra dial options are appended
// after the default insecure transport credentials.
func NewGRPCClassifier(addr string, logger *zap.Logger, opts ...grpc.DialOption) (*GRPCClassifier, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", addr, err)
	}
	logger.Info("gRPC classifier configured", zap.String("addr", addr))
	return &GRPCClassifier{conn: conn, logger: logger}, nil
}

// Classify implements model.Classifier.
func (c *GRPCClassifier) Classify(ctx context.Context, vector []float64) (*model.Prediction, error) {
	if len(vector) != features.NumFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVectorLength, len(vector), features.NumFeatures)
	}
	req, err := encodeRequest(sanitize(vector))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, classifyMethod, req, resp); err != nil {
		return nil, fmt.Errorf("remote classify failed: %w", err)
	}
	pred, err := decodeResponse(resp)
	if err != nil {
		return nil, err
	}
	pred.ProcessingTime = float64(time.Since(start).Microseconds()) / 1000
	return pred, nil
}

// Close closes the client connection.
func (c *GRPCClassifier) Close() error {
	return c.conn.Close()
}

func encodeRequest(vector []float64) (*structpb.Struct, error) {
	names := make([]any, len(features.Names))
	for i, n := range features.Names {
		names[i] = n
	}
	values := make([]any, len(vector))
	for i, v := range vector {
		values[i] = v
	}
	req, err := structpb.NewStruct(map[string]any{
		"names":    names,
		"features": values,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classify request: %w", err)
	}
	return req, nil
}

func decodeRequest(req *structpb.Struct) ([]float64, error) {
	list := req.GetFields()["features"].GetListValue()
	if list == nil {
		return nil, errors.New("request has no features list")
	}
	vector := make([]float64, len(list.GetValues()))
	for i, v := range list.GetValues() {
		vector[i] = v.GetNumberValue()
	}
	return vector, nil
}

func encodeResponse(pred *model.Prediction) (*structpb.Struct, error) {
	probs := make(map[string]any, len(pred.Probabilities))
	for label, p := range pred.Probabilities {
		probs[label] = p
	}
	return structpb.NewStruct(map[string]any{
		"label":         pred.Label,
		"confidence":    pred.Confidence,
		"probabilities": probs,
	})
}

func decodeResponse(resp *structpb.Struct) (*model.Prediction, error) {
	fields := resp.GetFields()
	label := fields["label"].GetStringValue()
	if label == "" {
		return nil, errors.New("classify response has no label")
	}
	pred := &model.Prediction{
		Label:         label,
		Confidence:    fields["confidence"].GetNumberValue(),
		Probabilities: make(map[string]float64),
	}
	for l, v := range fields["probabilities"].GetStructValue().GetFields() {
		pred.Probabilities[l] = v.GetNumberValue()
	}
	return pred, nil
}

// classifierServer is the server-side contract of the Classifier service.
type classifierServer interface {
	Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// server adapts a model.Classifier to classifierServer.
type server struct {
	impl model.Classifier
}

func (s *server) Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	vector, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	pred, err := s.impl.Classify(ctx, vector)
	if err != nil {
		return nil, err
	}
	return encodeResponse(pred)
}

func classifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(classifierServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: classifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(classifierServer).Classify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var classifierServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*classifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: classifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flowguard/v1/classifier.proto",
}

// RegisterServer exposes impl as the Classifier service on s. cmd/fg-classifier uses it to host
// the ONNX model for engines configured with the grpc classifier.
func RegisterServer(s *grpc.Server, impl model.Classifier) {
	s.RegisterService(&classifierServiceDesc, &server{impl: impl})
}
