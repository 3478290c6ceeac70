package cpu

import (
	"fmt"

	"github.com/born-ml/spectral/internal/tensor"
)

// Conv2D performs a 2D convolution forward pass.
//
// Input:  [batch, in_channels, h, w]
// Kernel: [out_channels, in_channels, kh, kw]
// Output: [batch, out_channels, (h+2p-kh)/s+1, (w+2p-kw)/s+1]
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input and kernel, got %dD and %dD", len(inShape), len(kShape)))
	}
	if input.DType() != tensor.Float32 {
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kInC, kH, kW := kShape[0], kShape[1], kShape[2], kShape[3]
	if inC != kInC {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", inC, kInC))
	}

	outH := (inH+2*padding-kH)/stride + 1
	outW := (inW+2*padding-kW)/stride + 1
	result, err := tensor.NewRaw(tensor.Shape{batch, outC, outH, outW}, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: %v", err))
	}

	src := input.AsFloat32()
	k := kernel.AsFloat32()
	dst := result.AsFloat32()

	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					var sum float32
					for ic := 0; ic < inC; ic++ {
						for i := 0; i < kH; i++ {
							ih := oh*stride - padding + i
							if ih < 0 || ih >= inH {
								continue
							}
							for j := 0; j < kW; j++ {
								iw := ow*stride - padding + j
								if iw < 0 || iw >= inW {
									continue
								}
								sum += src[((n*inC+ic)*inH+ih)*inW+iw] * k[((oc*inC+ic)*kH+i)*kW+j]
							}
						}
					}
					dst[((n*outC+oc)*outH+oh)*outW+ow] = sum
				}
			}
		}
	}
	return result
}

// ConvTranspose2D performs a transposed (fractionally-strided) 2D convolution
// forward pass.
//
// Input:  [batch, in_channels, h, w]
// Kernel: [in_channels, out_channels, kh, kw]
// Output: [batch, out_channels, (h-1)*s-2p+kh, (w-1)*s-2p+kw]
//
// The kernel stores the output dimension second; every input position
// scatters a kernel-sized patch into the output.
func (cpu *CPUBackend) ConvTranspose2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("convtranspose2d: expected 4D input and kernel, got %dD and %dD", len(inShape), len(kShape)))
	}
	if input.DType() != tensor.Float32 {
		panic(fmt.Sprintf("convtranspose2d: unsupported dtype %s", input.DType()))
	}

	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	kInC, outC, kH, kW := kShape[0], kShape[1], kShape[2], kShape[3]
	if inC != kInC {
		panic(fmt.Sprintf("convtranspose2d: input channels %d != kernel channels %d", inC, kInC))
	}

	outH := (inH-1)*stride - 2*padding + kH
	outW := (inW-1)*stride - 2*padding + kW
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("convtranspose2d: non-positive output size %dx%d", outH, outW))
	}
	result, err := tensor.NewRaw(tensor.Shape{batch, outC, outH, outW}, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("convtranspose2d: %v", err))
	}

	src := input.AsFloat32()
	k := kernel.AsFloat32()
	dst := result.AsFloat32()

	for n := 0; n < batch; n++ {
		for ic := 0; ic < inC; ic++ {
			for ih := 0; ih < inH; ih++ {
				for iw := 0; iw < inW; iw++ {
					v := src[((n*inC+ic)*inH+ih)*inW+iw]
					if v == 0 {
						continue
					}
					for oc := 0; oc < outC; oc++ {
						for i := 0; i < kH; i++ {
							oh := ih*stride - padding + i
							if oh < 0 || oh >= outH {
								continue
							}
							for j := 0; j < kW; j++ {
								ow := iw*stride - padding + j
								if ow < 0 || ow >= outW {
									continue
								}
								dst[((n*outC+oc)*outH+oh)*outW+ow] += v * k[((ic*outC+oc)*kH+i)*kW+j]
							}
						}
					}
				}
			}
		}
	}
	return result
}
