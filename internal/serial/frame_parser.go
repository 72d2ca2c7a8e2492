package serial

import (
	"bytes"
	"fmt"
)

// MaxLineLength 超过该长度仍未出现换行符时视为脏数据
const MaxLineLength = 1024

// FrameParser 定义了一个从字节流中提取完整帧的函数类型。
// 它返回：
//   - frame: 抽取出的完整帧（若数据不足以组成完整帧则返回 nil）
//   - rest: 余下未处理的字节（用于下一次解析时继续累积）
//   - err:  解析出错时的错误（此时应丢弃整个缓冲区）
type FrameParser func(buf []byte) (frame []byte, rest []byte, err error)

// ParseLine 以 '\n' 为帧尾切出一行，并去掉行尾的 '\r'，兼容 "\n" 与 "\r\n"。
// 空行返回长度为 0 的非 nil 帧。
func ParseLine(buf []byte) ([]byte, []byte, error) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		if len(buf) > MaxLineLength {
			return nil, nil, fmt.Errorf("line exceeds %d bytes without terminator", MaxLineLength)
		}
		// 尚未找到帧尾，保留全部数据
		return nil, buf, nil
	}
	line := bytes.TrimRight(buf[:i], "\r")
	frame := make([]byte, len(line))
	copy(frame, line)
	return frame, buf[i+1:], nil
}
