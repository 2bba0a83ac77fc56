package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/your-org/receiptscan/internal/config"
	"github.com/your-org/receiptscan/internal/models"
)

// DetectTextAPI is the part of the Rekognition client the engine calls.
type DetectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Rekognition detects text with AWS Rekognition DetectText. Errors are
// returned unwrapped from the SDK so their smithy error code stays visible.
type Rekognition struct {
	api DetectTextAPI
}

// NewRekognition builds a client from the default AWS credential chain, or
// from static keys when both are set.
func NewRekognition(ctx context.Context, cfg config.RecognitionConfig) (*Rekognition, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewRekognitionWithAPI(rekognition.NewFromConfig(awsCfg)), nil
}

func NewRekognitionWithAPI(api DetectTextAPI) *Rekognition {
	return &Rekognition{api: api}
}

func (r *Rekognition) Name() string { return config.EngineRekognition }

func (r *Rekognition) DetectText(ctx context.Context, image []byte) ([]models.TextDetection, error) {
	var body []byte
	out, err := r.api.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	}, func(o *rekognition.Options) {
		o.APIOptions = append(o.APIOptions, captureBody(&body))
	})
	if err != nil {
		return nil, err
	}

	dets := make([]models.TextDetection, 0, len(out.TextDetections))
	for _, td := range out.TextDetections {
		dets = append(dets, convertDetection(td))
	}
	applyWireNumbers(dets, body)
	return dets, nil
}

// captureBody keeps a copy of a successful response body in dst. The SDK
// decodes every number of DetectText as float32, which cannot hold values like
// 99.245193; the copy lets applyWireNumbers read them as float64.
func captureBody(dst *[]byte) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Deserialize.Add(middleware.DeserializeMiddlewareFunc("CaptureResponseBody",
			func(ctx context.Context, in middleware.DeserializeInput, next middleware.DeserializeHandler) (
				middleware.DeserializeOutput, middleware.Metadata, error,
			) {
				out, md, err := next.HandleDeserialize(ctx, in)
				if err != nil {
					return out, md, err
				}
				resp, ok := out.RawResponse.(*smithyhttp.Response)
				if !ok || resp.StatusCode < 200 || resp.StatusCode >= 300 {
					return out, md, nil
				}
				data, err := io.ReadAll(resp.Body)
				resp.Body.Close()
				if err != nil {
					return out, md, err
				}
				resp.Body = io.NopCloser(bytes.NewReader(data))
				*dst = data
				return out, md, nil
			}), middleware.After)
	}
}

type wireDetections struct {
	TextDetections []struct {
		Confidence *float64
		Geometry   *struct {
			BoundingBox *struct {
				Width, Height, Left, Top *float64
			}
			Polygon []struct {
				X, Y *float64
			}
		}
	}
}

// applyWireNumbers overwrites the float32-derived numbers in dets with the
// float64 values in the raw response body. dets is left alone when body is
// empty or does not line up with it.
func applyWireNumbers(dets []models.TextDetection, body []byte) {
	if len(body) == 0 {
		return
	}
	var wire wireDetections
	if err := json.Unmarshal(body, &wire); err != nil || len(wire.TextDetections) != len(dets) {
		return
	}

	for i, w := range wire.TextDetections {
		d := &dets[i]
		setIf(&d.Confidence, w.Confidence)
		if w.Geometry == nil || d.Geometry == nil {
			continue
		}
		if b := w.Geometry.BoundingBox; b != nil && d.Geometry.BoundingBox != nil {
			setIf(&d.Geometry.BoundingBox.Width, b.Width)
			setIf(&d.Geometry.BoundingBox.Height, b.Height)
			setIf(&d.Geometry.BoundingBox.Left, b.Left)
			setIf(&d.Geometry.BoundingBox.Top, b.Top)
		}
		if len(w.Geometry.Polygon) == len(d.Geometry.Polygon) {
			for j, p := range w.Geometry.Polygon {
				setIf(&d.Geometry.Polygon[j].X, p.X)
				setIf(&d.Geometry.Polygon[j].Y, p.Y)
			}
		}
	}
}

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func convertDetection(td types.TextDetection) models.TextDetection {
	d := models.TextDetection{
		DetectedText: aws.ToString(td.DetectedText),
		Type:         string(td.Type),
		ID:           td.Id,
		ParentID:     td.ParentId,
		Confidence:   widen(td.Confidence),
	}
	if g := td.Geometry; g != nil {
		d.Geometry = &models.Geometry{}
		if b := g.BoundingBox; b != nil {
			d.Geometry.BoundingBox = &models.BoundingBox{
				Width:  widen(b.Width),
				Height: widen(b.Height),
				Left:   widen(b.Left),
				Top:    widen(b.Top),
			}
		}
		for _, p := range g.Polygon {
			d.Geometry.Polygon = append(d.Geometry.Polygon, models.Point{X: widen(p.X), Y: widen(p.Y)})
		}
	}
	return d
}

// widen converts a float32 to the float64 with the same shortest decimal form,
// so 98.7 does not turn into 98.69999694824219. Precision beyond float32 is
// already gone at this point; applyWireNumbers restores it from the body.
func widen(f *float32) float64 {
	if f == nil {
		return 0
	}
	v, _ := strconv.ParseFloat(strconv.FormatFloat(float64(*f), 'g', -1, 32), 64)
	return v
}
