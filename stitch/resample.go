// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package stitch

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/imctools/mcdstitch/mcd"
)

// Science data stays float32 end to end; resampling must never quantize
// values through an integer image type, so planes are resampled as
// gonum matrices.

// Pixel sizes within this relative tolerance are treated as equal and the
// grid is pasted bit-exact
const resampleTolerance = 1e-6

// needsResample - true when an ROI's pixel size differs from the canvas
// pixel size beyond tolerance on either axis
func needsResample(pixelSizeX float64, pixelSizeY float64, canvasPixelSize float64) bool {
	return math.Abs(pixelSizeX-canvasPixelSize) > resampleTolerance*canvasPixelSize ||
		math.Abs(pixelSizeY-canvasPixelSize) > resampleTolerance*canvasPixelSize
}

// ResampleGrid - resamples every channel plane of a grid to the given
// shape: bilinear with reflect-edge indexing, with a gaussian antialias
// prefilter on axes that shrink
func ResampleGrid(grid *mcd.PixelGrid, dstHeight int, dstWidth int) *mcd.PixelGrid {
	result := mcd.MakePixelGrid(grid.Channels, dstHeight, dstWidth)
	for c := 0; c < grid.Channels; c++ {
		plane := planeMatrix(grid, c)
		resampled := resamplePlane(plane, dstHeight, dstWidth)
		for y := 0; y < dstHeight; y++ {
			for x := 0; x < dstWidth; x++ {
				result.Set(c, y, x, float32(resampled.At(y, x)))
			}
		}
	}
	return result
}

func planeMatrix(grid *mcd.PixelGrid, channel int) *mat.Dense {
	values := make([]float64, grid.Height*grid.Width)
	for i, v := range grid.Plane(channel) {
		values[i] = float64(v)
	}
	return mat.NewDense(grid.Height, grid.Width, values)
}

func resamplePlane(src *mat.Dense, dstHeight int, dstWidth int) *mat.Dense {
	srcHeight, srcWidth := src.Dims()
	scaleY := float64(srcHeight) / float64(dstHeight)
	scaleX := float64(srcWidth) / float64(dstWidth)

	if scaleX > 1 || scaleY > 1 {
		src = gaussianBlur(src, antialiasSigma(scaleX), antialiasSigma(scaleY))
	}

	dst := mat.NewDense(dstHeight, dstWidth, nil)
	for y := 0; y < dstHeight; y++ {
		srcY := (float64(y)+0.5)*scaleY - 0.5
		y0 := int(math.Floor(srcY))
		fy := srcY - float64(y0)

		for x := 0; x < dstWidth; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			x0 := int(math.Floor(srcX))
			fx := srcX - float64(x0)

			v00 := src.At(reflectIndex(y0, srcHeight), reflectIndex(x0, srcWidth))
			v01 := src.At(reflectIndex(y0, srcHeight), reflectIndex(x0+1, srcWidth))
			v10 := src.At(reflectIndex(y0+1, srcHeight), reflectIndex(x0, srcWidth))
			v11 := src.At(reflectIndex(y0+1, srcHeight), reflectIndex(x0+1, srcWidth))

			top := v00 + (v01-v00)*fx
			bottom := v10 + (v11-v10)*fx
			dst.Set(y, x, top+(bottom-top)*fy)
		}
	}

	return dst
}

// antialiasSigma - gaussian width matching the frequency content removed
// by the given shrink factor; zero for axes that don't shrink
func antialiasSigma(scale float64) float64 {
	if scale <= 1 {
		return 0
	}
	return math.Sqrt(scale*scale-1) / 2
}

// reflectIndex - reflects an out-of-range sample index back into [0,n)
func reflectIndex(i int, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i = ((i % period) + period) % period
	if i >= n {
		i = period - i
	}
	return i
}

// gaussianBlur - separable gaussian with reflect-edge indexing. A zero
// sigma skips that axis.
func gaussianBlur(src *mat.Dense, sigmaX float64, sigmaY float64) *mat.Dense {
	height, width := src.Dims()
	result := src

	if kernel := gaussianKernel(sigmaX); kernel != nil {
		blurred := mat.NewDense(height, width, nil)
		radius := len(kernel) / 2
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				sum := 0.0
				for k, weight := range kernel {
					sum += weight * result.At(y, reflectIndex(x+k-radius, width))
				}
				blurred.Set(y, x, sum)
			}
		}
		result = blurred
	}

	if kernel := gaussianKernel(sigmaY); kernel != nil {
		blurred := mat.NewDense(height, width, nil)
		radius := len(kernel) / 2
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				sum := 0.0
				for k, weight := range kernel {
					sum += weight * result.At(reflectIndex(y+k-radius, height), x)
				}
				blurred.Set(y, x, sum)
			}
		}
		result = blurred
	}

	return result
}

// gaussianKernel - normalized 1D kernel of radius 3*sigma, nil when sigma
// is too small to matter
func gaussianKernel(sigma float64) []float64 {
	if sigma < 1e-3 {
		return nil
	}

	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
