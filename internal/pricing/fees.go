package pricing

import (
	"math"
	"math/big"
)

// JobTypeLive is the streaming job type whose pixel counts may be estimated
// from elapsed time when the request carries no explicit count.
const JobTypeLive = "lv2v"

// livePixelsPerSecond approximates a canonical 1280x720 stream at 30 fps.
// This is an approximation policy for live jobs that report no pixel counts,
// not a measurement.
const livePixelsPerSecond = 1280 * 720 * 30 // 27,648,000

// CalculateFee computes the wei fee for a pixel count under a price
// descriptor: floor(pixels * pricePerUnit / pixelsPerUnit). A zero
// pixelsPerUnit prices everything at zero rather than dividing by it.
func CalculateFee(pixels *big.Int, pricePerUnit, pixelsPerUnit int64) *big.Int {
	if pixelsPerUnit == 0 || pixels == nil || pixels.Sign() == 0 {
		return big.NewInt(0)
	}

	fee := new(big.Int).Mul(pixels, big.NewInt(pricePerUnit))
	return fee.Quo(fee, big.NewInt(pixelsPerUnit))
}

// CalculatePlatformCut computes the platform's share of a fee. The percentage
// is converted to hundredths of a percent first so the division stays in
// integers; floating point never touches the monetary amount.
func CalculatePlatformCut(feeWei *big.Int, cutPercent float64) *big.Int {
	if feeWei == nil || feeWei.Sign() == 0 {
		return big.NewInt(0)
	}

	basis := big.NewInt(int64(math.Round(cutPercent * 100)))
	cut := new(big.Int).Mul(feeWei, basis)
	return cut.Quo(cut, big.NewInt(10000))
}

// EstimateLivePixels estimates pixels processed over an elapsed wall-clock
// interval for live jobs without explicit pixel counts.
func EstimateLivePixels(secondsElapsed float64) *big.Int {
	if secondsElapsed <= 0 {
		return big.NewInt(0)
	}
	return big.NewInt(int64(math.Floor(livePixelsPerSecond * secondsElapsed)))
}
