package classifier

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName имя gRPC сервиса модели, под ним же регистрируется health
	ServiceName = "deepfake.v1.Classifier"

	// PredictMethod полный путь унарного метода предсказания
	PredictMethod = "/" + ServiceName + "/Predict"

	// ShapeMetadataKey ключ метаданных с формой тензора "n,h,w,c"
	ShapeMetadataKey = "x-tensor-shape"
)

// GRPCClient клиент для модели, доступной по gRPC.
// Запрос: BytesValue с тензором float32 little-endian, форма в метаданных.
// Ответ: ListValue с вероятностями по кадрам.
type GRPCClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	logger *logrus.Logger
}

// NewGRPCClient создает клиент. Соединение устанавливается лениво при первом вызове.
func NewGRPCClient(target string, logger *logrus.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return &GRPCClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		logger: logger,
	}, nil
}

// Predict отправляет пачку кадров на классификацию
func (c *GRPCClient) Predict(ctx context.Context, batch *Batch) ([]float64, error) {
	c.logger.Debugf("Отправка %d кадров в gRPC классификатор", batch.Size)

	ctx = metadata.AppendToOutgoingContext(ctx, ShapeMetadataKey, FormatShape(batch.Shape()))

	resp := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, PredictMethod, wrapperspb.Bytes(EncodeTensor(batch.Data)), resp); err != nil {
		return nil, fmt.Errorf("grpc predict failed: %w", err)
	}

	scores := make([]float64, 0, len(resp.GetValues()))
	for i, v := range resp.GetValues() {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("prediction %d is not a number", i)
		}
		scores = append(scores, num.NumberValue)
	}
	return scores, nil
}

// Health проверяет статус сервиса через стандартный grpc.health.v1
func (c *GRPCClient) Health(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("grpc health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("classifier service status is %s", resp.GetStatus())
	}
	return nil
}

// Close закрывает соединение
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// EncodeTensor упаковывает значения в little-endian float32
func EncodeTensor(data []float32) []byte {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// FormatShape форматирует форму тензора для метаданных
func FormatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}
