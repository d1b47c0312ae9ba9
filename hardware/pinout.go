package hardware

// Pins lists the board-specific GPIO pin numbers sampled by the input
// sampler, in the order Control records are kept and InputEvent.Index
// is reported. Mirrors the original PinoutConfig.hpp pin array; a real
// board image overrides this with its own wiring.
var Pins = []int{40, 38, 36}
