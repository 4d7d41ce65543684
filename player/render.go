package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/mobile/gl"

	"github.com/njyeung/vlayer/render"
)

// requiredSymbols are the GL entry points the renderer draws with.
var requiredSymbols = []string{
	"glActiveTexture",
	"glAttachShader",
	"glBindBuffer",
	"glBindFramebuffer",
	"glBindTexture",
	"glBufferData",
	"glClear",
	"glClearColor",
	"glCompileShader",
	"glCreateProgram",
	"glCreateShader",
	"glDeleteBuffers",
	"glDeleteProgram",
	"glDeleteShader",
	"glDeleteTextures",
	"glDisableVertexAttribArray",
	"glDrawArrays",
	"glEnableVertexAttribArray",
	"glGenBuffers",
	"glGenTextures",
	"glGetAttribLocation",
	"glGetUniformLocation",
	"glLinkProgram",
	"glPixelStorei",
	"glShaderSource",
	"glTexImage2D",
	"glTexParameteri",
	"glUniform1f",
	"glUniform1i",
	"glUseProgram",
	"glVertexAttribPointer",
	"glViewport",
}

// GLRenderer draws the current frame into a framebuffer of the client's
// graphics context. It implements render.RenderContext.
type GLRenderer struct {
	pacer *pacer
	log   *zap.Logger

	mu      sync.Mutex
	glctx   gl.Context
	program gl.Program
	pos     gl.Attrib
	sample  gl.Uniform
	flipY   gl.Uniform
	quad    gl.Buffer
	tex     gl.Texture
	shown   *Frame
}

var _ render.RenderContext = (*GLRenderer)(nil)

func newGLRenderer(p *pacer, log *zap.Logger) *GLRenderer {
	return &GLRenderer{pacer: p, log: log.Named("vo/opengl-cb")}
}

func (r *GLRenderer) InitGL(api render.GraphicsAPI) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.glctx != nil {
		return errors.New("renderer already initialized")
	}
	if api.Functions == nil {
		return errors.New("no GL function table")
	}
	var missing []string
	for _, name := range requiredSymbols {
		if api.ProcAddress == nil || api.ProcAddress(name) == nil {
			r.log.Warn("missing GL function", zap.String("symbol", name))
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%d GL functions unavailable, first %s", len(missing), missing[0])
	}

	glctx := api.Functions
	program, err := createProgram(glctx, vertexShader, fragmentShader)
	if err != nil {
		return err
	}
	r.glctx = glctx
	r.program = program
	r.pos = glctx.GetAttribLocation(program, "position")
	r.sample = glctx.GetUniformLocation(program, "tex")
	r.flipY = glctx.GetUniformLocation(program, "flipY")

	r.quad = glctx.CreateBuffer()
	glctx.BindBuffer(gl.ARRAY_BUFFER, r.quad)
	glctx.BufferData(gl.ARRAY_BUFFER, quadData, gl.STATIC_DRAW)

	r.tex = glctx.CreateTexture()
	glctx.BindTexture(gl.TEXTURE_2D, r.tex)
	glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	r.log.Debug("renderer initialized")
	return nil
}

func (r *GLRenderer) SetUpdateCallback(fn func()) {
	r.pacer.setUpdateCallback(fn)
}

func (r *GLRenderer) ReportFlip(timestamp int64) {
	r.pacer.reportFlip(timestamp)
}

// Draw renders the current frame into fbo, letterboxed to width x height.
// A negative height flips the image so row 0 of the frame ends up at the
// top of a bottom-up framebuffer.
func (r *GLRenderer) Draw(fbo uint32, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	glctx := r.glctx
	if glctx == nil {
		return errors.New("renderer not initialized")
	}
	flip := height < 0
	if flip {
		height = -height
	}

	glctx.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{Value: fbo})
	glctx.Viewport(0, 0, width, height)
	glctx.ClearColor(0, 0, 0, 1)
	glctx.Clear(gl.COLOR_BUFFER_BIT)

	f := r.pacer.current.Load()
	if f == nil || width <= 0 || height <= 0 {
		return nil
	}

	glctx.ActiveTexture(gl.TEXTURE0)
	glctx.BindTexture(gl.TEXTURE_2D, r.tex)
	if f != r.shown {
		glctx.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
		glctx.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB, f.Width, f.Height, gl.RGB, gl.UNSIGNED_BYTE, f.RGB)
		r.shown = f
	}

	x, y, w, h := letterbox(f.Width, f.Height, width, height)
	glctx.Viewport(x, y, w, h)

	glctx.UseProgram(r.program)
	glctx.Uniform1i(r.sample, 0)
	if flip {
		glctx.Uniform1f(r.flipY, 1)
	} else {
		glctx.Uniform1f(r.flipY, 0)
	}

	glctx.BindBuffer(gl.ARRAY_BUFFER, r.quad)
	glctx.EnableVertexAttribArray(r.pos)
	glctx.VertexAttribPointer(r.pos, 2, gl.FLOAT, false, 0, 0)
	glctx.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	glctx.DisableVertexAttribArray(r.pos)
	return nil
}

func (r *GLRenderer) UninitGL() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.glctx == nil {
		return
	}
	r.glctx.DeleteTexture(r.tex)
	r.glctx.DeleteBuffer(r.quad)
	r.glctx.DeleteProgram(r.program)
	r.glctx = nil
	r.shown = nil
	r.log.Debug("renderer released")
}

// letterbox fits a srcW x srcH image into dstW x dstH, keeping its aspect
// ratio and centering it. The result is a viewport in framebuffer pixels.
func letterbox(srcW, srcH, dstW, dstH int) (x, y, w, h int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, dstW, dstH
	}
	w, h = fitSize(srcW, srcH, dstW, dstH)
	return (dstW - w) / 2, (dstH - h) / 2, w, h
}

// fitSize computes aspect-correct dimensions to fit in the target area.
func fitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if maxW == 0 || maxH == 0 {
		return srcW, srcH
	}

	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(maxW) / float64(maxH)

	if srcAspect > dstAspect {
		return maxW, int(math.Round(float64(maxW) / srcAspect))
	}
	return int(math.Round(float64(maxH) * srcAspect)), maxH
}

// createProgram creates, compiles, and links a gl.Program.
func createProgram(glctx gl.Context, vertexSrc, fragmentSrc string) (gl.Program, error) {
	program := glctx.CreateProgram()
	if program.Value == 0 {
		return gl.Program{}, fmt.Errorf("no programs available")
	}

	vs, err := loadShader(glctx, gl.VERTEX_SHADER, vertexSrc)
	if err != nil {
		return gl.Program{}, err
	}
	fs, err := loadShader(glctx, gl.FRAGMENT_SHADER, fragmentSrc)
	if err != nil {
		glctx.DeleteShader(vs)
		return gl.Program{}, err
	}

	glctx.AttachShader(program, vs)
	glctx.AttachShader(program, fs)
	glctx.LinkProgram(program)

	// Flag shaders for deletion when program is unlinked.
	glctx.DeleteShader(vs)
	glctx.DeleteShader(fs)

	if glctx.GetProgrami(program, gl.LINK_STATUS) == 0 {
		defer glctx.DeleteProgram(program)
		return gl.Program{}, fmt.Errorf("program link: %s", glctx.GetProgramInfoLog(program))
	}
	return program, nil
}

func loadShader(glctx gl.Context, shaderType gl.Enum, src string) (gl.Shader, error) {
	shader := glctx.CreateShader(shaderType)
	if shader.Value == 0 {
		return gl.Shader{}, fmt.Errorf("could not create shader (type %v)", shaderType)
	}
	glctx.ShaderSource(shader, src)
	glctx.CompileShader(shader)
	if glctx.GetShaderi(shader, gl.COMPILE_STATUS) == 0 {
		defer glctx.DeleteShader(shader)
		return gl.Shader{}, fmt.Errorf("shader compile: %s", glctx.GetShaderInfoLog(shader))
	}
	return shader, nil
}

// quadData is a triangle strip covering the viewport.
var quadData = f32Bytes(binary.LittleEndian,
	-1, -1,
	+1, -1,
	-1, +1,
	+1, +1,
)

func f32Bytes(byteOrder binary.ByteOrder, values ...float32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		byteOrder.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

const vertexShader = `#version 100
uniform float flipY;
attribute vec2 position;
varying vec2 uv;
void main() {
	// Texture row 0 is the top of the frame.
	uv = vec2(position.x*0.5+0.5, 0.5-position.y*0.5);
	if (flipY < 0.5) {
		uv.y = 1.0 - uv.y;
	}
	gl_Position = vec4(position, 0.0, 1.0);
}`

const fragmentShader = `#version 100
precision mediump float;
uniform sampler2D tex;
varying vec2 uv;
void main() {
	gl_FragColor = vec4(texture2D(tex, uv).rgb, 1.0);
}`
